// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/snaplist/internal/auth"
	"github.com/hitoshi/snaplist/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// identityContextKey は認証済みIdentityを格納するためのキー。
	identityContextKey = contextKey("identity")
)

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い場合はpresent=falseを返す。
func bearerToken(r *http.Request) (token string, present bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

// authenticate はトークンを検証し、成功時はIdentityを注入したコンテキストを返す。
func authenticate(ctx context.Context, verifier auth.Verifier, token string) (context.Context, *model.APIError) {
	if token == "" {
		return nil, model.NewMissingCredentialError()
	}
	identity, err := verifier.Verify(ctx, token)
	if err != nil {
		return nil, model.NewInvalidCredentialError(err)
	}
	setRequestUserID(ctx, identity.UserID)
	ctx = context.WithValue(ctx, identityContextKey, identity)
	ctx = context.WithValue(ctx, userIDContextKey, identity.UserID)
	return ctx, nil
}

// NewAuthMiddleware はAuthorization: Bearer ヘッダーを検証するミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// ヘッダーが無い・形式不正・検証失敗の場合は401を返し、後続のハンドラーは呼ばない。
func NewAuthMiddleware(verifier auth.Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := bearerToken(r)
			ctx, apiErr := authenticate(r.Context(), verifier, token)
			if apiErr != nil {
				if apiErr.Err != nil {
					slog.Warn("token verification failed",
						slog.String("path", r.URL.Path),
						slog.String("error", apiErr.Err.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware はヘッダーが無いリクエストを匿名として通すミドルウェアを返す。
// ヘッダーがある場合はNewAuthMiddlewareと同じく検証し、失敗時は401を返す。
func NewOptionalAuthMiddleware(verifier auth.Verifier) func(next http.Handler) http.Handler {
	required := NewAuthMiddleware(verifier)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, present := bearerToken(r); !present {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// IdentityFromContext はリクエストコンテキストから認証済みIdentityを取得する。
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	return identity, ok && identity != nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, identityContextKey, &model.Identity{UserID: userID})
	return context.WithValue(ctx, userIDContextKey, userID)
}
