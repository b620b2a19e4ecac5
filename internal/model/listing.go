package model

import "time"

// Listing はユーザーの出品レコードを表す。
type Listing struct {
	ID          string
	UserID      string // 所有者。作成後は変更しない
	Title       string
	Description string
	ImagePath   string // ストレージ上の安定したパス
	ImageURL    string // 返却直前に発行する署名付きURL。永続化しない
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListingUpdate は出品の部分更新を表す。nilのフィールドは変更しない。
type ListingUpdate struct {
	Title       *string
	Description *string
	ImagePath   *string
}

// IsEmpty は更新対象のフィールドが1つも無い場合にtrueを返す。
func (u ListingUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.ImagePath == nil
}

// BlobRef はアップロード済み画像への参照を表す。
type BlobRef struct {
	Path string // {userID}/{suffix}.{ext}
	URL  string // 署名付きURL
}
