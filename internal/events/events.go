// Package events は出品のライフサイクルイベントを外部に通知する。
package events

import (
	"context"
	"time"

	"github.com/hitoshi/snaplist/internal/model"
)

// イベントのサブジェクト。
const (
	SubjectListingCreated = "listing.created"
	SubjectListingUpdated = "listing.updated"
	SubjectListingDeleted = "listing.deleted"
)

// ListingEvent は出品イベントのペイロード。
type ListingEvent struct {
	ListingID  string    `json:"listing_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title,omitempty"`
	ImagePath  string    `json:"image_path,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewListingEvent は出品レコードからイベントを組み立てる。
func NewListingEvent(l *model.Listing, now time.Time) ListingEvent {
	return ListingEvent{
		ListingID:  l.ID,
		UserID:     l.UserID,
		Title:      l.Title,
		ImagePath:  l.ImagePath,
		OccurredAt: now.UTC(),
	}
}

// Publisher はイベント送信のインターフェース。
type Publisher interface {
	Publish(ctx context.Context, subject string, event ListingEvent) error
	Close()
}

// NopPublisher は何も送信しないPublisher。NATS_URL未設定時に使う。
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

// Publish は何もしない。
func (NopPublisher) Publish(context.Context, string, ListingEvent) error { return nil }

// Close は何もしない。
func (NopPublisher) Close() {}
