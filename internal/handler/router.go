package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/snaplist/internal/auth"
	"github.com/hitoshi/snaplist/internal/metrics"
	"github.com/hitoshi/snaplist/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          auth.Verifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Recorder          metrics.Recorder
	Logger            *slog.Logger

	// 画像解析
	AnalysisService AnalysisServiceInterface

	// 画像アップロード
	UploadService UploadServiceInterface

	// 出品
	ListingService ListingServiceInterface

	// ヘルスチェック・メトリクス
	HealthChecks   map[string]Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → (Auth | OptionalAuth) → RateLimit
//
// /health と /metrics は認証・レート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(recorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	analyzeHandler := NewAnalyzeHandler(deps.AnalysisService, logger)
	uploadHandler := NewUploadHandler(deps.UploadService)
	listingHandler := NewListingHandler(deps.ListingService)
	healthHandler := NewHealthHandler(deps.HealthChecks, logger)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 画像解析は匿名でも利用できる。トークンがあれば検証する
	r.With(
		middleware.NewOptionalAuthMiddleware(deps.Verifier),
		deps.RateLimiter.AnalyzeMiddleware(),
	).Post("/api/analyze", analyzeHandler.Analyze)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/upload", uploadHandler.Upload)

		r.Route("/api/listings", func(r chi.Router) {
			r.Get("/", listingHandler.ListListings)
			r.Post("/", listingHandler.CreateListing)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingHandler.GetListing)
				r.Put("/", listingHandler.UpdateListing)
				r.Delete("/", listingHandler.DeleteListing)
			})
		})
	})

	return r
}
