// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// HTTPレスポンスの error 文字列とステータス判定に使うコードを持つ。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（ユーザー向け）
	Category string // カテゴリ: auth, validation, listing, ai, storage, system
	Err      error  // 原因エラー。ログ用でレスポンスには含めない
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAnalysisFailed   = "ANALYSIS_FAILED"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeStorageFailed    = "STORAGE_FAILED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

// NewMissingCredentialError は認証情報が無い、または形式不正の場合のエラーを生成する。
func NewMissingCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized: missing credential",
		Category: "auth",
	}
}

// NewInvalidCredentialError はトークンが無効または期限切れの場合のエラーを生成する。
func NewInvalidCredentialError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized: invalid credential",
		Category: "auth",
		Err:      cause,
	}
}

// NewInvalidInputError は入力値の検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  reason,
		Category: "validation",
	}
}

// NewListingNotFoundError は出品が見つからない場合のエラーを生成する。
// 存在しない場合と他ユーザー所有の場合で同一のエラーを返すこと。
func NewListingNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Listing not found",
		Category: "listing",
	}
}

// NewAnalysisError は画像解析プロバイダの失敗を表すエラーを生成する。
func NewAnalysisError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeAnalysisFailed,
		Message:  "Failed to analyze image",
		Category: "ai",
		Err:      cause,
	}
}

// NewGenerationError はコンテンツ生成プロバイダの失敗を表すエラーを生成する。
// フォールバックで吸収されるため、レスポンスには現れない。
func NewGenerationError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  "Failed to generate product content",
		Category: "ai",
		Err:      cause,
	}
}

// NewStorageError はストレージプロバイダの失敗を表すエラーを生成する。
func NewStorageError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailed,
		Message:  "Failed to upload image",
		Category: "storage",
		Err:      cause,
	}
}

// NewInternalError は分類されない内部エラーを生成する。
func NewInternalError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Err:      cause,
	}
}
