// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupDetector は出品のタイトルや説明文にHTMLマークアップが含まれていないかを判定する。
// 入力を書き換えることはせず、マークアップを含む入力は呼び出し側で拒否する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupDetector はマークアップ検出のインターフェース。
// 出品の保存前に使用される。
type MarkupDetector interface {
	// ContainsMarkup はタグ・コメントなど、除去対象となるHTMLが含まれる場合にtrueを返す。
	// "size < 10" や "&amp;" のような記号・エンティティだけのテキストはマークアップとみなさない。
	ContainsMarkup(s string) bool
}

type markupDetector struct {
	policy *bluemonday.Policy
}

// NewMarkupDetector はMarkupDetectorの新しいインスタンスを生成する。
// bluemondayのStrictPolicyで除去される部分があるかどうかで判定する。
func NewMarkupDetector() MarkupDetector {
	return &markupDetector{policy: bluemonday.StrictPolicy()}
}

// newlineNormalizer はHTMLトークナイザと同じ改行の正規化を行う。
var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "")

// ContainsMarkup はStrictPolicyの出力と入力をテキストとして比較する。
// エンティティの表記揺れは両辺をデコードして吸収する。
func (d *markupDetector) ContainsMarkup(s string) bool {
	if !strings.ContainsAny(s, "<&") {
		return false
	}
	plain := newlineNormalizer.Replace(s)
	return html.UnescapeString(d.policy.Sanitize(plain)) != html.UnescapeString(plain)
}
