package handler

import (
	"context"

	"github.com/hitoshi/snaplist/internal/content"
	"github.com/hitoshi/snaplist/internal/model"
	"github.com/hitoshi/snaplist/internal/vision"
)

// AnalysisServiceAdapter は vision.Analyzer と content.Generator を AnalysisServiceInterface に適合させるアダプタ。
// 解析結果を受けてからコンテンツ生成を行う。
type AnalysisServiceAdapter struct {
	analyzer  *vision.Analyzer
	generator *content.Generator
}

// NewAnalysisServiceAdapter はAnalysisServiceAdapterを生成する。
func NewAnalysisServiceAdapter(analyzer *vision.Analyzer, generator *content.Generator) *AnalysisServiceAdapter {
	return &AnalysisServiceAdapter{analyzer: analyzer, generator: generator}
}

// AnalyzeImage は画像を解析し、その結果からタイトル・説明文の下書きを生成する。
// 解析の失敗はそのまま返す。生成の失敗はフォールバックで吸収される。
func (a *AnalysisServiceAdapter) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*model.AnalysisResult, model.DraftContent, error) {
	analysis, err := a.analyzer.Analyze(ctx, image, mimeType)
	if err != nil {
		return nil, model.DraftContent{}, err
	}
	draft := a.generator.Generate(ctx, *analysis)
	return analysis, draft, nil
}

// --- compile-time interface checks ---

var _ AnalysisServiceInterface = (*AnalysisServiceAdapter)(nil)
