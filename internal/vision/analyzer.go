// Package vision は商品画像をAIで解析し、構造化された解析結果を生成する。
package vision

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/snaplist/internal/ai"
	"github.com/hitoshi/snaplist/internal/metrics"
	"github.com/hitoshi/snaplist/internal/model"
)

// defaultConfidence はJSON応答にconfidenceが無い場合の値。
const defaultConfidence = 0.8

// analysisPrompt は解析結果を厳密なJSONオブジェクトで返させる固定プロンプト。
const analysisPrompt = `Analyze this image with extreme detail and specificity. Focus on identifying the exact model, brand, and specific features.

Please respond with ONLY a valid JSON object in this exact format:
{
  "labels": ["specific brand", "exact model", "specific features", "category"],
  "text": "any text, numbers, or markings visible in the image",
  "objects": ["exact product name", "specific components", "identifiable parts"],
  "colors": ["specific color names", "finish type"],
  "confidence": 0.95
}

Be extremely specific - if it's an iPhone, identify the exact model (iPhone 14 Pro, iPhone 7, etc.). If it's a laptop, identify the brand and model. Include any visible text, serial numbers, or model identifiers.`

var errEmptyReply = errors.New("no analysis response from ai provider")

// Analyzer はAIプロバイダを使って画像を解析する。
type Analyzer struct {
	generator ai.Generator
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewAnalyzer はAnalyzerの新しいインスタンスを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewAnalyzer(generator ai.Generator, recorder metrics.Recorder, logger *slog.Logger) *Analyzer {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Analyzer{
		generator: generator,
		metrics:   recorder,
		logger:    logger,
	}
}

// Analyze は画像バイト列を解析してAnalysisResultを返す。
// プロバイダ呼び出しの失敗または空文字列の応答はAnalysisErrorとして返す。
// 応答がJSONとして解釈できない場合はエラーにせずフォールバック結果を返す。
func (a *Analyzer) Analyze(ctx context.Context, image []byte, mimeType string) (*model.AnalysisResult, error) {
	start := time.Now()
	reply, err := a.generator.Generate(ctx, analysisPrompt, &ai.Image{Data: image, MIMEType: mimeType})
	a.metrics.RecordAILatency("analyze", time.Since(start))
	if err != nil {
		a.metrics.RecordAnalysis(metrics.OutcomeFailure)
		return nil, model.NewAnalysisError(err)
	}
	if reply == "" {
		a.metrics.RecordAnalysis(metrics.OutcomeFailure)
		return nil, model.NewAnalysisError(errEmptyReply)
	}

	result, ok := ParseAnalysis(reply)
	if !ok {
		a.logger.Warn("解析結果のJSONパースに失敗したためフォールバックを使用します",
			slog.Int("reply_length", len(reply)),
		)
		a.metrics.RecordAnalysis(metrics.OutcomeFallback)
		return result, nil
	}

	a.metrics.RecordAnalysis(metrics.OutcomeSuccess)
	return result, nil
}

// rawAnalysis はAI応答のJSON形状。欠損フィールドを判別するためポインタ・nilスライスで受ける。
type rawAnalysis struct {
	Labels     []string `json:"labels"`
	Text       string   `json:"text"`
	Objects    []string `json:"objects"`
	Colors     []string `json:"colors"`
	Confidence *float64 `json:"confidence"`
}

// ParseAnalysis はAI応答からAnalysisResultを組み立てる。
// パースに成功した場合はtrueを、フォールバックを返した場合はfalseを返す。
func ParseAnalysis(reply string) (*model.AnalysisResult, bool) {
	var raw rawAnalysis
	if err := ai.DecodeObject(reply, &raw); err != nil {
		return Fallback(reply), false
	}

	confidence := defaultConfidence
	// 0は未設定と同じ扱いにする
	if raw.Confidence != nil && *raw.Confidence != 0 {
		confidence = clamp(*raw.Confidence)
	}

	return &model.AnalysisResult{
		Labels:     nonNil(raw.Labels),
		Text:       raw.Text,
		Objects:    nonNil(raw.Objects),
		Colors:     nonNil(raw.Colors),
		Confidence: confidence,
	}, true
}

// colorWords は応答本文から色の言及を検出するための語。
var colorWords = []string{"red", "blue", "green", "yellow", "black", "white"}

// Fallback は解釈できない応答に対する低信頼度の固定結果を返す。
// 応答本文にテキストや色への言及があれば結果を補う。
func Fallback(reply string) *model.AnalysisResult {
	result := &model.AnalysisResult{
		Labels:     []string{"product", "item"},
		Text:       "",
		Objects:    []string{"object"},
		Colors:     []string{"mixed"},
		Confidence: 0.7,
	}

	lower := strings.ToLower(reply)
	if strings.Contains(lower, "text") || strings.Contains(lower, "words") || strings.Contains(lower, "letters") {
		result.Text = "Text detected in image"
	}
	for _, c := range colorWords {
		if strings.Contains(lower, c) {
			result.Colors = []string{"mixed colors"}
			break
		}
	}

	return result
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
