// Package ai は画像解析・文章生成に使う外部マルチモーダルモデル（Gemini）との通信を提供する。
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// DefaultEndpoint はGemini REST APIのベースURL。
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel は既定のモデル名。
	DefaultModel = "gemini-2.0-flash"
	// defaultMaxResponseSize はレスポンスボディ読み取りの既定上限（1MiB）。
	defaultMaxResponseSize int64 = 1 << 20
)

// ErrResponseTooLarge はレスポンスボディが上限を超えた場合のエラー。
var ErrResponseTooLarge = errors.New("ai response exceeds size limit")

// Image はプロンプトに添付する画像。
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator はプロンプト（と任意の画像）から応答テキストを得るインターフェース。
// vision / content パッケージはこのインターフェースのみに依存する。
type Generator interface {
	Generate(ctx context.Context, prompt string, image *Image) (string, error)
}

// Client はGemini generateContent APIのクライアント。
type Client struct {
	httpClient      *http.Client
	logger          *slog.Logger
	apiKey          string
	model           string
	endpoint        string // テスト用にエンドポイントを差し替え可能
	maxResponseSize int64
}

// ClientOption はClientの任意設定。
type ClientOption func(*Client)

// WithModel は使用するモデル名を設定する。
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithEndpoint はAPIのベースURLを設定する。
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithMaxResponseSize はレスポンスボディ読み取りの上限を設定する。
func WithMaxResponseSize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseSize = n
		}
	}
}

// NewClient はClientの新しいインスタンスを生成する。
// タイムアウトはhttpClient側で設定すること。
func NewClient(httpClient *http.Client, apiKey string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:      httpClient,
		logger:          logger,
		apiKey:          apiKey,
		model:           DefaultModel,
		endpoint:        DefaultEndpoint,
		maxResponseSize: defaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Generator = (*Client)(nil)

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate はプロンプトを1回だけ送信し、先頭候補のテキストを返す。
// リトライは行わない。非2xx応答・通信エラー・上限超過はエラーとして返す。
// 候補が無い場合は空文字列を返す（空応答の扱いは呼び出し元が決める）。
func (c *Client) Generate(ctx context.Context, prompt string, image *Image) (string, error) {
	parts := []part{{Text: prompt}}
	if image != nil && len(image.Data) > 0 {
		mimeType := image.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(image.Data),
		}})
	}

	payload, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("failed to encode ai request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create ai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("AIプロバイダの呼び出しに失敗しました",
			slog.String("model", c.model),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("ai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readAllWithLimit(resp.Body, c.maxResponseSize)
	if err != nil {
		return "", fmt.Errorf("failed to read ai response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("AIプロバイダがエラーステータスを返しました",
			slog.String("model", c.model),
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("ai provider returned status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode ai response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// readAllWithLimit は最大limitバイトまで読み取り、超過した場合はErrResponseTooLargeを返す。
func readAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}
