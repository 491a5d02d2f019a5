package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/wellbeat/internal/auth"
	"github.com/hitoshi/wellbeat/internal/config"
	"github.com/hitoshi/wellbeat/internal/dashboard"
	"github.com/hitoshi/wellbeat/internal/database"
	"github.com/hitoshi/wellbeat/internal/handler"
	"github.com/hitoshi/wellbeat/internal/logger"
	"github.com/hitoshi/wellbeat/internal/metrics"
	"github.com/hitoshi/wellbeat/internal/middleware"
	"github.com/hitoshi/wellbeat/internal/provider/googlefit"
	"github.com/hitoshi/wellbeat/internal/provider/spotify"
	"github.com/hitoshi/wellbeat/internal/repository"
	"github.com/hitoshi/wellbeat/internal/tracking"
	"github.com/hitoshi/wellbeat/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
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
		return runHealthcheck(port)
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
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// googleFitConfig はConfigからGoogle Fitクライアント設定を組み立てる。
func googleFitConfig(cfg *config.Config) googlefit.Config {
	return googlefit.Config{
		Web: googlefit.AppCredentials{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		},
		Mobile: googlefit.AppCredentials{
			ClientID:     cfg.GoogleMobileClientID,
			ClientSecret: cfg.GoogleMobileClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		},
		WindowDays: cfg.FetchWindowDays,
	}
}

// spotifyConfig はConfigからSpotifyクライアント設定を組み立てる。
func spotifyConfig(cfg *config.Config) spotify.Config {
	return spotify.Config{
		Web: spotify.AppCredentials{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RedirectURL:  cfg.SpotifyRedirectURL,
		},
		Mobile: spotify.AppCredentials{
			ClientID:     cfg.SpotifyMobileClientID,
			ClientSecret: cfg.SpotifyMobileClientSecret,
			RedirectURL:  cfg.SpotifyRedirectURL,
		},
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	stateRepo := repository.NewPostgresStateRepo(db)
	snapshotRepo := repository.NewPostgresSnapshotRepo(db)
	trackingRepo := repository.NewPostgresTrackingRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. プロバイダークライアントの初期化
	providerHTTPClient := &http.Client{Timeout: cfg.ProviderTimeout}
	googleClient := googlefit.NewClient(googleFitConfig(cfg), providerHTTPClient, slog.Default())
	spotifyClient := spotify.NewClient(spotifyConfig(cfg), providerHTTPClient, slog.Default())

	// 5. ドメインサービスの初期化
	authService := auth.NewService(
		googleClient, spotifyClient, sessionRepo, stateRepo,
		auth.ServiceConfig{StateTTL: cfg.StateTTL},
	)
	dashboardService := dashboard.NewService(
		sessionRepo, snapshotRepo, googleClient, spotifyClient, collector,
		dashboard.ServiceConfig{RecentTracksLimit: cfg.RecentTracksLimit},
	)
	trackingService := tracking.NewService(trackingRepo)

	// 6. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		SyncRate:        rate.Limit(float64(cfg.RateLimitSync) / 60.0),
		SyncBurst:       cfg.RateLimitSync,
		CleanupInterval: 5 * time.Minute,
	}

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		Logger:            slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			MobileRedirectURL: cfg.MobileRedirectURL,
		},

		DashboardService: dashboardService,

		SpotifyAuth:  authService,
		SpotifyQuery: dashboardService,

		TrackingService: trackingService,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 7. クリーンアップジョブをバックグラウンドで起動
	// worker未起動の構成でも期限切れstateが溜まらないようにする
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	cleanupJob := cleanup.NewCleanupJob(db, stateRepo, collector, slog.Default())
	go cleanupJob.Start(cleanupCtx, cfg.SweepInterval)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れstateとスナップショットのクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 依存関係の初期化
	stateRepo := repository.NewPostgresStateRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	cleanupJob := cleanup.NewCleanupJob(db, stateRepo, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SweepInterval)

	slog.Info("worker stopped gracefully")
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
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
