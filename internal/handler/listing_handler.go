package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/snaplist/internal/listing"
	"github.com/hitoshi/snaplist/internal/model"
)

// maxListingBodySize は出品作成・更新リクエストボディの上限。
const maxListingBodySize = 64 << 10

// ListingServiceInterface は出品ハンドラーが必要とするサービスインターフェース。
// listing.Serviceが満たす。
type ListingServiceInterface interface {
	Create(ctx context.Context, userID string, in listing.CreateInput) (*model.Listing, error)
	Get(ctx context.Context, userID, id string) (*model.Listing, error)
	List(ctx context.Context, userID string) ([]*model.Listing, error)
	Update(ctx context.Context, userID, id string, update model.ListingUpdate) (*model.Listing, error)
	Delete(ctx context.Context, userID, id string) error
}

// ListingHandler は出品管理のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// listingRequest は出品作成・更新リクエストのボディ。
// image_urlは旧クライアント向けのimage_pathの別名。
type listingRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImagePath   *string `json:"image_path"`
	ImageURL    *string `json:"image_url"`
}

// imageRef はimage_pathを優先し、無ければimage_urlを返す。
func (req listingRequest) imageRef() *string {
	if req.ImagePath != nil {
		return req.ImagePath
	}
	return req.ImageURL
}

// listingResponse は出品のAPIレスポンス。
type listingResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImagePath   string    `json:"image_path"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type listingEnvelope struct {
	Listing listingResponse `json:"listing"`
}

type listingsEnvelope struct {
	Listings []listingResponse `json:"listings"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func toListingResponse(l *model.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		UserID:      l.UserID,
		Title:       l.Title,
		Description: l.Description,
		ImagePath:   l.ImagePath,
		ImageURL:    l.ImageURL,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func decodeListingRequest(w http.ResponseWriter, r *http.Request) (*listingRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxListingBodySize)
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, model.NewInvalidInputError("Invalid request body")
	}
	return &req, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListListings は呼び出し元の出品一覧を返す。
// GET /api/listings
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	listings, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := listingsEnvelope{Listings: make([]listingResponse, len(listings))}
	for i, l := range listings {
		resp.Listings[i] = toListingResponse(l)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateListing は出品を作成する。
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	req, err := decodeListingRequest(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, listing.CreateInput{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		ImageRef:    deref(req.imageRef()),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, listingEnvelope{Listing: toListingResponse(created)})
}

// GetListing は出品を1件返す。
// GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	l, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listingEnvelope{Listing: toListingResponse(l)})
}

// UpdateListing は出品を部分更新する。省略されたフィールドは変更しない。
// PUT /api/listings/{id}
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	req, err := decodeListingRequest(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), model.ListingUpdate{
		Title:       req.Title,
		Description: req.Description,
		ImagePath:   req.imageRef(),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listingEnvelope{Listing: toListingResponse(updated)})
}

// DeleteListing は出品と参照画像を削除する。
// DELETE /api/listings/{id}
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
