// Package auth はBearerトークンの検証と認証済みユーザーの解決を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/snaplist/internal/model"
)

// ErrMissingSubject はトークンにsubクレームが無い場合のエラー。
var ErrMissingSubject = errors.New("token has no subject")

// Verifier はBearerトークンを検証してIdentityを返すインターフェース。
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// Claims は外部IdPが発行するアクセストークンのクレーム。
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier はHMAC署名のJWTを検証する。
type JWTVerifier struct {
	secret   []byte
	audience string
	issuer   string
	leeway   time.Duration
}

var _ Verifier = (*JWTVerifier)(nil)

// NewJWTVerifier はJWTVerifierを生成する。
// audience・issuerが空の場合はそのクレームを検証しない。
func NewJWTVerifier(secret, audience, issuer string) *JWTVerifier {
	return &JWTVerifier{
		secret:   []byte(secret),
		audience: audience,
		issuer:   issuer,
		leeway:   30 * time.Second,
	}
}

// Verify はトークンの署名・有効期限・audience・issuerを検証し、Identityを返す。
func (v *JWTVerifier) Verify(_ context.Context, token string) (*model.Identity, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return &model.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
	}, nil
}
