// Package listing は出品管理のドメインロジックを提供する。
// すべての操作は呼び出し元のユーザーが所有する出品に限定される。
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/snaplist/internal/events"
	"github.com/hitoshi/snaplist/internal/model"
	"github.com/hitoshi/snaplist/internal/repository"
	"github.com/hitoshi/snaplist/internal/security"
	"github.com/hitoshi/snaplist/internal/storage"
)

// BlobService は出品が参照する画像の操作。storage.Serviceが満たす。
type BlobService interface {
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, ref string)
}

// CreateInput は出品作成の入力。
type CreateInput struct {
	Title       string
	Description string
	ImageRef    string // 安定したパス、または旧形式の署名付きURL
}

// Service は出品管理のサービス層。
type Service struct {
	repo      repository.ListingRepository
	blobs     BlobService
	markup    security.MarkupDetector
	publisher events.Publisher
	urlTTL    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// publisherがnilの場合はイベントを送信しない。
func NewService(
	repo repository.ListingRepository,
	blobs BlobService,
	markup security.MarkupDetector,
	publisher events.Publisher,
	urlTTL time.Duration,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		blobs:     blobs,
		markup:    markup,
		publisher: publisher,
		urlTTL:    urlTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// Create は出品を作成する。
// タイトル・説明文・画像参照はいずれも必須で、画像は呼び出し元の名前空間にある必要がある。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Listing, error) {
	title, err := s.requireText(in.Title, "Title")
	if err != nil {
		return nil, err
	}
	description, err := s.requireText(in.Description, "Description")
	if err != nil {
		return nil, err
	}
	imagePath, err := s.ownedImagePath(userID, in.ImageRef)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("出品IDの生成に失敗しました: %w", err)
	}

	created, err := s.repo.Create(ctx, &model.Listing{
		ID:          id.String(),
		UserID:      userID,
		Title:       title,
		Description: description,
		ImagePath:   imagePath,
	})
	if err != nil {
		return nil, fmt.Errorf("出品の作成に失敗しました: %w", err)
	}

	s.publish(ctx, events.SubjectListingCreated, created)
	s.attachSignedURL(ctx, created)
	return created, nil
}

// Get は呼び出し元が所有する出品を取得する。
// 存在しない場合と他ユーザー所有の場合は同じNotFoundを返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Listing, error) {
	if !isValidID(id) {
		return nil, model.NewListingNotFoundError()
	}

	l, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if l == nil {
		return nil, model.NewListingNotFoundError()
	}

	s.attachSignedURL(ctx, l)
	return l, nil
}

// List は呼び出し元の出品を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Listing, error) {
	listings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}

	for _, l := range listings {
		s.attachSignedURL(ctx, l)
	}
	return listings, nil
}

// Update は指定されたフィールドのみを更新する。
// 指定されたフィールドは空であってはならない。更新対象が無い場合は現在のレコードを返す。
func (s *Service) Update(ctx context.Context, userID, id string, update model.ListingUpdate) (*model.Listing, error) {
	if !isValidID(id) {
		return nil, model.NewListingNotFoundError()
	}

	clean := model.ListingUpdate{}
	if update.Title != nil {
		title, err := s.requireText(*update.Title, "Title")
		if err != nil {
			return nil, err
		}
		clean.Title = &title
	}
	if update.Description != nil {
		description, err := s.requireText(*update.Description, "Description")
		if err != nil {
			return nil, err
		}
		clean.Description = &description
	}
	if update.ImagePath != nil {
		imagePath, err := s.ownedImagePath(userID, *update.ImagePath)
		if err != nil {
			return nil, err
		}
		clean.ImagePath = &imagePath
	}

	if clean.IsEmpty() {
		return s.Get(ctx, userID, id)
	}

	updated, err := s.repo.Update(ctx, id, userID, clean)
	if err != nil {
		return nil, fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewListingNotFoundError()
	}

	s.publish(ctx, events.SubjectListingUpdated, updated)
	s.attachSignedURL(ctx, updated)
	return updated, nil
}

// Delete は出品を削除し、続けて参照していた画像をベストエフォートで削除する。
// 画像の削除に失敗しても出品の削除は成功として扱う。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if !isValidID(id) {
		return model.NewListingNotFoundError()
	}

	deleted, err := s.repo.DeleteByIDAndUser(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("出品の削除に失敗しました: %w", err)
	}
	if deleted == nil {
		return model.NewListingNotFoundError()
	}

	if deleted.ImagePath != "" {
		s.blobs.Delete(ctx, deleted.ImagePath)
	}

	s.publish(ctx, events.SubjectListingDeleted, deleted)
	return nil
}

// requireText は空白以外の文字を含みマークアップの無いテキストを、送信されたまま返す。
func (s *Service) requireText(v, field string) (string, error) {
	if strings.TrimSpace(v) == "" {
		return "", model.NewInvalidInputError(field + " is required")
	}
	if s.markup.ContainsMarkup(v) {
		return "", model.NewInvalidInputError(field + " must not contain HTML markup")
	}
	return v, nil
}

func (s *Service) ownedImagePath(userID, ref string) (string, error) {
	p := storage.PathFromReference(ref)
	if p == "" {
		return "", model.NewInvalidInputError("Image is required")
	}
	if !storage.OwnsPath(userID, p) {
		return "", model.NewInvalidInputError("Image does not belong to the current user")
	}
	return p, nil
}

// attachSignedURL は返却直前に署名付きURLを付与する。
// 発行に失敗した場合はImageURLを空のままにする。
func (s *Service) attachSignedURL(ctx context.Context, l *model.Listing) {
	l.ImageURL = ""
	if l.ImagePath == "" {
		return
	}

	signed, err := s.blobs.SignedURL(ctx, l.ImagePath, s.urlTTL)
	if err != nil {
		s.logger.Warn("署名付きURLの発行に失敗しました",
			slog.String("listing_id", l.ID),
			slog.String("path", l.ImagePath),
			slog.String("error", err.Error()),
		)
		return
	}
	l.ImageURL = signed
}

func (s *Service) publish(ctx context.Context, subject string, l *model.Listing) {
	if err := s.publisher.Publish(ctx, subject, events.NewListingEvent(l, s.now())); err != nil {
		s.logger.Warn("イベントの送信に失敗しました",
			slog.String("subject", subject),
			slog.String("listing_id", l.ID),
			slog.String("error", err.Error()),
		)
	}
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
