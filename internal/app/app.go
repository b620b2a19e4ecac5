package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/snaplist/internal/ai"
	"github.com/hitoshi/snaplist/internal/auth"
	"github.com/hitoshi/snaplist/internal/config"
	"github.com/hitoshi/snaplist/internal/content"
	"github.com/hitoshi/snaplist/internal/database"
	"github.com/hitoshi/snaplist/internal/events"
	"github.com/hitoshi/snaplist/internal/handler"
	"github.com/hitoshi/snaplist/internal/listing"
	"github.com/hitoshi/snaplist/internal/logger"
	"github.com/hitoshi/snaplist/internal/metrics"
	"github.com/hitoshi/snaplist/internal/middleware"
	"github.com/hitoshi/snaplist/internal/repository"
	"github.com/hitoshi/snaplist/internal/security"
	"github.com/hitoshi/snaplist/internal/storage"
	"github.com/hitoshi/snaplist/internal/vision"
)

// loadDotEnv は.envファイルがあれば環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが無い場合は何もしない。
func loadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（環境変数が優先）
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// backends はAPIサーバーが依存する外部サービスの接続をまとめたもの。
type backends struct {
	store        storage.ObjectStore
	listings     repository.ListingRepository
	publisher    events.Publisher
	healthChecks map[string]handler.Pinger
}

// newAPIHandler は外部サービスの接続からドメインサービスとルーターを組み立てる。
// 返されるstop関数はバックグラウンド処理（レート制限のクリーンアップ）を停止する。
func newAPIHandler(cfg *config.Config, b backends, reg *prometheus.Registry, log *slog.Logger) (http.Handler, func()) {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. AIプロバイダ（タイムアウトは専用のhttp.Clientで持つ）
	aiClient := ai.NewClient(
		&http.Client{Timeout: cfg.AITimeout},
		cfg.GeminiAPIKey,
		log,
		ai.WithModel(cfg.GeminiModel),
		ai.WithEndpoint(cfg.GeminiEndpoint),
		ai.WithMaxResponseSize(cfg.AIMaxResponseSize),
	)
	analyzer := vision.NewAnalyzer(aiClient, collector, log)
	generator := content.NewGenerator(aiClient, collector, log)

	// 3. ストレージと出品サービス
	blobService := storage.NewService(b.store, cfg.SignedURLTTL, collector, log)
	listingService := listing.NewService(
		b.listings,
		blobService,
		security.NewMarkupDetector(),
		b.publisher,
		cfg.SignedURLTTL,
		log,
	)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAnalyze),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Verifier:          auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTIssuer),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Recorder:          collector,
		Logger:            log,

		AnalysisService: handler.NewAnalysisServiceAdapter(analyzer, generator),
		UploadService:   blobService,
		ListingService:  listingService,

		HealthChecks:   b.healthChecks,
		MetricsHandler: metrics.Handler(reg),
	})

	return router, rateLimiter.Stop
}

// runServe はAPIサーバーモードで起動する。
// DB・ストレージ・イベント送信先に接続し、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. ストレージ接続（バケットが無ければ作成する）
	store, err := storage.NewMinioStore(ctx, storage.MinioOptions{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		Region:    cfg.StorageRegion,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	// 3. イベント送信先（NATS_URL未設定なら送信しない）
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		publisher = natsPublisher
	}
	defer publisher.Close()

	// 4. ルーターの構築
	router, stopLimiter := newAPIHandler(cfg, backends{
		store:     store,
		listings:  repository.NewPostgresListingRepo(db),
		publisher: publisher,
		healthChecks: map[string]handler.Pinger{
			"database": db,
			"storage":  handler.PingerFunc(store.Ping),
		},
	}, prometheus.NewRegistry(), log)
	defer stopLimiter()

	// 5. HTTPサーバーの起動
	// WriteTimeoutはAI呼び出しを含む解析リクエストが収まるように設定する
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server)
}

// serveUntilSignal はサーバーを起動し、SIGINT/SIGTERMでグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(target string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せた文字列を返す。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
