package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/snaplist/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

var _ ListingRepository = (*PostgresListingRepo)(nil)

const listingColumns = `id, user_id, title, description, image_path, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*model.Listing, error) {
	l := &model.Listing{}
	if err := row.Scan(
		&l.ID, &l.UserID, &l.Title, &l.Description, &l.ImagePath,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return l, nil
}

// Create は出品を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, listing *model.Listing) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO listings (id, user_id, title, description, image_path)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+listingColumns,
		listing.ID, listing.UserID, listing.Title, listing.Description, listing.ImagePath,
	)
	created, err := scanListing(row)
	if err != nil {
		return nil, fmt.Errorf("出品の作成に失敗しました: %w", err)
	}
	return created, nil
}

// FindByIDAndUser は指定ユーザーが所有する出品を取得する。
func (r *PostgresListingRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+`
		 FROM listings WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	return l, nil
}

// ListByUser は指定ユーザーの出品を作成日時の降順で返す。
func (r *PostgresListingRepo) ListByUser(ctx context.Context, userID string) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+`
		 FROM listings WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	listings := []*model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("出品のスキャンに失敗しました: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("出品一覧の走査に失敗しました: %w", err)
	}
	return listings, nil
}

// Update は指定されたフィールドのみ更新する。nilのフィールドは既存値を維持する。
func (r *PostgresListingRepo) Update(ctx context.Context, id, userID string, update model.ListingUpdate) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE listings SET
		    title = COALESCE($3, title),
		    description = COALESCE($4, description),
		    image_path = COALESCE($5, image_path),
		    updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+listingColumns,
		id, userID,
		nullStringPtr(update.Title), nullStringPtr(update.Description), nullStringPtr(update.ImagePath),
	)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	return l, nil
}

// DeleteByIDAndUser は出品を削除し、削除したレコードを返す。
func (r *PostgresListingRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM listings WHERE id = $1 AND user_id = $2
		 RETURNING `+listingColumns,
		id, userID,
	)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の削除に失敗しました: %w", err)
	}
	return l, nil
}

// nullStringPtr は*stringをsql.NullStringに変換する。nilはNULLとして扱う。
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
