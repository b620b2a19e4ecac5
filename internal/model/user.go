package model

// Identity はBearerトークンから解決された認証済みユーザーを表す。
type Identity struct {
	UserID string
	Email  string
}
