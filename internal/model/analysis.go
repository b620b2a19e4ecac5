package model

// AnalysisResult は画像解析の構造化結果。リクエスト毎に生成し永続化しない。
type AnalysisResult struct {
	Labels     []string `json:"labels"`
	Text       string   `json:"text"`
	Objects    []string `json:"objects"`
	Colors     []string `json:"colors"`
	Confidence float64  `json:"confidence"`
}

// DraftContent はユーザーが編集可能な生成済みタイトルと説明文。
type DraftContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
