package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/snaplist/internal/model"
)

// UploadServiceInterface は画像アップロードハンドラーが必要とするサービスインターフェース。
// storage.Serviceが満たす。
type UploadServiceInterface interface {
	Upload(ctx context.Context, userID string, data []byte, mimeType, originalName string) (*model.BlobRef, error)
}

// UploadHandler は画像アップロードのHTTPハンドラー。
type UploadHandler struct {
	service UploadServiceInterface
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(service UploadServiceInterface) *UploadHandler {
	return &UploadHandler{service: service}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Path    string `json:"path"`
}

// Upload は画像を呼び出し元の名前空間に保存する。
// POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	img, err := readImageForm(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ref, err := h.service.Upload(r.Context(), userID, img.Data, img.MIMEType, img.Filename)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		URL:     ref.URL,
		Path:    ref.Path,
	})
}
