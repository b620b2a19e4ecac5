// Package content は画像解析結果から出品用のタイトルと説明文を生成する。
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/snaplist/internal/ai"
	"github.com/hitoshi/snaplist/internal/metrics"
	"github.com/hitoshi/snaplist/internal/model"
)

// parsedDescriptionDefault はJSON応答のdescriptionが空の場合の既定値。
const parsedDescriptionDefault = "A high-quality product with excellent features and durability."

var errEmptyReply = errors.New("no content response from ai provider")

// Generator はAIプロバイダでタイトルと説明文を生成する。
// プロバイダが失敗しても呼び出し元にはエラーを返さず、決定的なフォールバックを返す。
type Generator struct {
	generator ai.Generator
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
func NewGenerator(generator ai.Generator, recorder metrics.Recorder, logger *slog.Logger) *Generator {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Generator{
		generator: generator,
		metrics:   recorder,
		logger:    logger,
	}
}

// BuildPrompt は解析結果を埋め込んだ生成用プロンプトを返す。
func BuildPrompt(analysis model.AnalysisResult) string {
	return fmt.Sprintf(`Generate a compelling product title and description for an e-commerce listing based on this detailed analysis:

Labels: %s
Objects: %s
Colors: %s
Text: %s

Create a title and description that highlights the specific model, brand, and unique features. Be precise and detailed.

Please respond with ONLY a valid JSON object in this exact format:
{
  "title": "Specific model name with key features (max 60 characters)",
  "description": "Detailed description mentioning exact model, brand, colors, and specific features (max 200 words)"
}

Do not include any other text, just the JSON object.`,
		strings.Join(analysis.Labels, ", "),
		strings.Join(analysis.Objects, ", "),
		strings.Join(analysis.Colors, ", "),
		analysis.Text,
	)
}

// Generate は解析結果からDraftContentを生成する。エラーは返さない。
func (g *Generator) Generate(ctx context.Context, analysis model.AnalysisResult) model.DraftContent {
	start := time.Now()
	reply, err := g.generator.Generate(ctx, BuildPrompt(analysis), nil)
	g.metrics.RecordAILatency("generate", time.Since(start))

	if err == nil && strings.TrimSpace(reply) == "" {
		err = errEmptyReply
	}
	if err != nil {
		genErr := model.NewGenerationError(err)
		g.logger.Warn("文章生成に失敗したためフォールバックを使用します",
			slog.String("code", genErr.Code),
			slog.String("error", genErr.Error()),
		)
		g.metrics.RecordGeneration(metrics.OutcomeFailure)
		return Fallback(analysis)
	}

	draft, ok := ParseDraft(reply, analysis)
	if !ok {
		g.logger.Warn("生成結果のJSONパースに失敗したためフォールバックを使用します",
			slog.Int("reply_length", len(reply)),
		)
		g.metrics.RecordGeneration(metrics.OutcomeFallback)
		return draft
	}

	g.metrics.RecordGeneration(metrics.OutcomeSuccess)
	return draft
}

// ParseDraft はAI応答からDraftContentを取り出す。
// 解釈できない場合はFallbackの結果とfalseを返す。
func ParseDraft(reply string, analysis model.AnalysisResult) (model.DraftContent, bool) {
	var draft model.DraftContent
	if err := ai.DecodeObject(reply, &draft); err != nil {
		return Fallback(analysis), false
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	if draft.Title == "" {
		draft.Title = defaultTitle
	}
	if draft.Description == "" {
		draft.Description = parsedDescriptionDefault
	}
	return draft, true
}
