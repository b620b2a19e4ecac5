package content

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/snaplist/internal/model"
)

const (
	defaultTitle = "Product"
	// fallbackDescription は説明文の文がひとつも組み立てられない場合の固定文。
	fallbackDescription = "A high-quality product with excellent features and durability. Perfect for various uses and applications."
	// maxTitleKeywords はタイトルに使うキーワード数の上限。
	maxTitleKeywords = 4
	// minTextTokenLength は検出テキストからキーワードとして採用するトークンの最小文字数（これより長いもの）。
	minTextTokenLength = 3
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// Fallback は解析結果だけからタイトルと説明文を決定的に組み立てる。
// AIの応答が使えない場合に使用し、同じ入力には常に同じ結果を返す。
func Fallback(analysis model.AnalysisResult) model.DraftContent {
	return model.DraftContent{
		Title:       fallbackTitle(analysis),
		Description: fallbackDescriptionFor(analysis),
	}
}

// keywords はラベル、オブジェクト、検出テキストの長いトークンを初出順に重複なく並べ、ストップワードを除く。
func keywords(analysis model.AnalysisResult) []string {
	candidates := make([]string, 0, len(analysis.Labels)+len(analysis.Objects))
	candidates = append(candidates, analysis.Labels...)
	candidates = append(candidates, analysis.Objects...)
	for _, tok := range strings.Fields(analysis.Text) {
		if utf8.RuneCountInString(tok) > minTextTokenLength {
			candidates = append(candidates, tok)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	result := make([]string, 0, len(candidates))
	for _, kw := range candidates {
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		if _, stop := stopwords[strings.ToLower(kw)]; stop {
			continue
		}
		result = append(result, kw)
	}
	return result
}

func fallbackTitle(analysis model.AnalysisResult) string {
	kws := keywords(analysis)
	if len(kws) == 0 {
		return defaultTitle
	}
	if len(kws) > maxTitleKeywords {
		kws = kws[:maxTitleKeywords]
	}

	words := make([]string, len(kws))
	for i, kw := range kws {
		words[i] = upperFirst(kw)
	}
	return strings.Join(words, " ")
}

func fallbackDescriptionFor(analysis model.AnalysisResult) string {
	var parts []string
	if len(analysis.Labels) > 0 {
		parts = append(parts, "This "+analysis.Labels[0]+" features high-quality materials and craftsmanship.")
	}
	if len(analysis.Objects) > 0 {
		parts = append(parts, "Perfect for "+analysis.Objects[0]+" enthusiasts and collectors.")
	}
	if len(analysis.Colors) > 0 {
		parts = append(parts, "Available in beautiful "+analysis.Colors[0]+" tones.")
	}
	if analysis.Text != "" {
		parts = append(parts, "Includes detailed specifications and features.")
	}

	if len(parts) == 0 {
		return fallbackDescription
	}
	return strings.Join(parts, " ")
}

// upperFirst は先頭の1文字だけを大文字にする。残りの文字は変更しない（"BRAND"は"BRAND"のまま）。
func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
