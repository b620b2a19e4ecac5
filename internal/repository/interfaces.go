// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/snaplist/internal/model"
)

// ListingRepository は出品データの永続化インターフェース。
// すべての操作は所有者のユーザーIDで絞り込む。
type ListingRepository interface {
	// Create は出品を作成し、DBが付与したタイムスタンプを反映したレコードを返す。
	Create(ctx context.Context, listing *model.Listing) (*model.Listing, error)

	// FindByIDAndUser は指定ユーザーが所有する出品を取得する。
	// 存在しない場合・他ユーザー所有の場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Listing, error)

	// ListByUser は指定ユーザーの出品を作成日時の降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Listing, error)

	// Update は指定されたフィールドのみ更新し、更新後のレコードを返す。
	// 対象が無い場合はnilを返す。
	Update(ctx context.Context, id, userID string, update model.ListingUpdate) (*model.Listing, error)

	// DeleteByIDAndUser は出品を削除し、削除したレコードを返す。
	// 対象が無い場合はnilを返す。
	DeleteByIDAndUser(ctx context.Context, id, userID string) (*model.Listing, error)
}
