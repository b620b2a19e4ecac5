package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/snaplist/internal/middleware"
	"github.com/hitoshi/snaplist/internal/model"
	"github.com/hitoshi/snaplist/internal/storage"
)

// AnalysisServiceInterface は画像解析ハンドラーが必要とするサービスインターフェース。
type AnalysisServiceInterface interface {
	// AnalyzeImage は画像を解析し、解析結果と下書きのタイトル・説明文を返す。
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (*model.AnalysisResult, model.DraftContent, error)
}

// AnalyzeHandler は画像解析のHTTPハンドラー。
type AnalyzeHandler struct {
	service AnalysisServiceInterface
	logger  *slog.Logger
}

// NewAnalyzeHandler はAnalyzeHandlerを生成する。
func NewAnalyzeHandler(service AnalysisServiceInterface, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{service: service, logger: logger}
}

// analyzeResponse は画像解析のAPIレスポンス。
type analyzeResponse struct {
	Success  bool                  `json:"success"`
	Analysis *model.AnalysisResult `json:"analysis"`
	Content  model.DraftContent    `json:"content"`
}

// Analyze は画像を解析して下書きを返す。認証は任意。
// POST /api/analyze
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	img, err := readImageForm(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := storage.ValidateImage(img.Data, img.MIMEType); err != nil {
		handleServiceError(w, err)
		return
	}

	analysis, draft, err := h.service.AnalyzeImage(r.Context(), img.Data, img.MIMEType)
	if err != nil {
		userID, _ := middleware.UserIDFromContext(r.Context())
		h.logger.Error("画像解析に失敗しました",
			slog.String("user_id", userID),
			slog.String("mime_type", img.MIMEType),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:  true,
		Analysis: analysis,
		Content:  draft,
	})
}
