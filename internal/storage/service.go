// Package storage は商品画像の保存・署名付きURL発行・削除を提供する。
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/snaplist/internal/metrics"
	"github.com/hitoshi/snaplist/internal/model"
)

const (
	// MaxImageSize はアップロード可能な画像の最大サイズ（5MiB）。
	MaxImageSize = 5 << 20
	// DefaultSignedURLTTL は署名付きURLの既定の有効期間。
	DefaultSignedURLTTL = 3600 * time.Second
)

// ObjectStore はオブジェクトストレージの境界インターフェース。
type ObjectStore interface {
	PutObject(ctx context.Context, path string, data []byte, contentType string) error
	PresignGet(ctx context.Context, path string, ttl time.Duration) (string, error)
	RemoveObject(ctx context.Context, path string) error
}

// Service は画像のアップロードと参照を扱う。
type Service struct {
	store      ObjectStore
	defaultTTL time.Duration
	metrics    metrics.Recorder
	logger     *slog.Logger
	newSuffix  func() (string, error) // テスト用に差し替え可能
}

// NewService はServiceの新しいインスタンスを生成する。
// defaultTTLが0以下の場合は3600秒を使う。
func NewService(store ObjectStore, defaultTTL time.Duration, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if defaultTTL <= 0 {
		defaultTTL = DefaultSignedURLTTL
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		store:      store,
		defaultTTL: defaultTTL,
		metrics:    recorder,
		logger:     logger,
		newSuffix:  uuidSuffix,
	}
}

func uuidSuffix() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// DefaultTTL は設定済みの署名付きURLの有効期間を返す。
func (s *Service) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// ValidateImage はアップロード前の画像を検証する。
func ValidateImage(data []byte, mimeType string) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/") {
		return model.NewInvalidInputError("File must be an image")
	}
	if len(data) == 0 {
		return model.NewInvalidInputError("No image provided")
	}
	if len(data) > MaxImageSize {
		return model.NewInvalidInputError("Image must be 5MB or smaller")
	}
	return nil
}

// Upload は画像をユーザーの名前空間に保存し、パスと署名付きURLを返す。
// 検証エラーの場合はストレージを一切呼び出さない。ストレージの失敗はリトライしない。
func (s *Service) Upload(ctx context.Context, userID string, data []byte, mimeType, originalName string) (*model.BlobRef, error) {
	if err := ValidateImage(data, mimeType); err != nil {
		s.metrics.RecordUpload(metrics.OutcomeRejected)
		return nil, err
	}
	if userID == "" {
		return nil, model.NewMissingCredentialError()
	}

	suffix, err := s.newSuffix()
	if err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to generate object name: %w", err))
	}

	p := userID + "/" + suffix
	if ext := extensionFor(originalName, mimeType); ext != "" {
		p += "." + ext
	}

	if err := s.store.PutObject(ctx, p, data, mimeType); err != nil {
		s.metrics.RecordUpload(metrics.OutcomeFailure)
		s.logger.Error("画像の保存に失敗しました",
			slog.String("user_id", userID),
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageError(err)
	}
	s.metrics.RecordUpload(metrics.OutcomeSuccess)

	signed, err := s.store.PresignGet(ctx, p, s.defaultTTL)
	if err != nil {
		s.logger.Error("署名付きURLの発行に失敗しました",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageError(err)
	}

	return &model.BlobRef{Path: p, URL: signed}, nil
}

// SignedURL は保存済み画像の期限付きURLを発行する。副作用は無い。
// ttlが0以下の場合は既定値を使う。
func (s *Service) SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	p := PathFromReference(ref)
	if p == "" {
		return "", model.NewInvalidInputError("Invalid image reference")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	signed, err := s.store.PresignGet(ctx, p, ttl)
	if err != nil {
		return "", model.NewStorageError(err)
	}
	return signed, nil
}

// Delete は画像を削除する。失敗してもログに記録するだけでエラーは返さない。
func (s *Service) Delete(ctx context.Context, ref string) {
	p := PathFromReference(ref)
	if p == "" {
		return
	}

	if err := s.store.RemoveObject(ctx, p); err != nil {
		s.metrics.RecordBlobDelete(metrics.OutcomeFailure)
		s.logger.Warn("画像の削除に失敗しました",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.RecordBlobDelete(metrics.OutcomeSuccess)
}
