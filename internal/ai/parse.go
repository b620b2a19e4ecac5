package ai

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ErrNotJSONObject は応答がJSONオブジェクトとして解釈できない場合のエラー。
var ErrNotJSONObject = errors.New("ai reply is not a json object")

// StripCodeFence は応答を囲むMarkdownのコードフェンス（```json または ```）を取り除く。
// フェンスが無い場合は前後の空白を除いた文字列をそのまま返す。
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	var rest string
	switch {
	case strings.HasPrefix(s, "```json"):
		rest = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		rest = strings.TrimPrefix(s, "```")
	default:
		return s
	}

	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest)
}

// DecodeObject はフェンスを除去した応答をJSONオブジェクトとしてdstに厳密にデコードする。
// 失敗時はエラーを返すので、呼び出し元は決定的なフォールバックに切り替えること。
func DecodeObject(raw string, dst any) error {
	body := StripCodeFence(raw)
	if !strings.HasPrefix(body, "{") {
		return ErrNotJSONObject
	}

	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// 末尾に何かが続く応答は不正とみなす（閉じ括弧の余りも含む）
	if _, err := dec.Token(); err != io.EOF {
		return ErrNotJSONObject
	}
	return nil
}
