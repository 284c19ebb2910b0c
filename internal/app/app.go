package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/scholarfind/internal/auth"
	"github.com/hitoshi/scholarfind/internal/catalog"
	"github.com/hitoshi/scholarfind/internal/config"
	"github.com/hitoshi/scholarfind/internal/database"
	"github.com/hitoshi/scholarfind/internal/handler"
	"github.com/hitoshi/scholarfind/internal/kvstore"
	"github.com/hitoshi/scholarfind/internal/logger"
	"github.com/hitoshi/scholarfind/internal/metrics"
	"github.com/hitoshi/scholarfind/internal/middleware"
	"github.com/hitoshi/scholarfind/internal/profile"
	"github.com/hitoshi/scholarfind/internal/recommend"
	"github.com/hitoshi/scholarfind/internal/repository"
	"github.com/hitoshi/scholarfind/internal/scoring"
	"github.com/hitoshi/scholarfind/internal/security"
	"github.com/hitoshi/scholarfind/internal/selection"
	"github.com/hitoshi/scholarfind/internal/user"
	"github.com/hitoshi/scholarfind/internal/worker/cleanup"
	"github.com/hitoshi/scholarfind/internal/worker/ingest"
)

const (
	// cleanupInterval はクリーンアップジョブの実行間隔。
	cleanupInterval = 24 * time.Hour
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	level := logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	level.Set(logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// SIGINTまたはSIGTERMを受信するとキャンセルされるコンテキストでRunContextを呼ぶ。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, w, args)
}

// RunContext はコマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// ctxがキャンセルされるとサーバー・ワーカーを停止して戻る。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// apiServer はワイヤリング済みのHTTPハンドラーと、停止が必要な部品を保持する。
type apiServer struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// Close はバックグラウンドで動く部品を停止する。
func (a *apiServer) Close() {
	a.rateLimiter.Stop()
}

// buildAPI はリポジトリ・サービス・ハンドラーを組み立てる。
// DB接続はここでは行わないため、未接続の*sql.DBでも構築できる。
func buildAPI(cfg *config.Config, db *sql.DB, kv kvstore.Store, reg *prometheus.Registry) *apiServer {
	log := slog.Default()

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	selectionRepo := repository.NewPostgresSelectionRepo(db)
	scholarshipRepo := repository.NewPostgresScholarshipRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	micrositeRepo := repository.NewPostgresMicrositeRepo(db)

	// 2. メトリクス
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	profileService := profile.NewService(profileRepo, profile.NewCache(cfg.ProfileCacheTTL))
	catalogService := catalog.NewService(
		scholarshipRepo, courseRepo, micrositeRepo,
		security.NewMicrositeSanitizer(), log,
	)
	recommendService := recommend.NewService(
		profileService, catalogService, collector,
		scoring.Options{Size: cfg.RecommendSize, Floor: cfg.RecommendFloor},
		log,
	)

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo, profileService,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	userService := user.NewService(userRepo, sessionRepo, selectionRepo, profileService)

	// 4. 選択リスト（ログインはPostgreSQL、匿名は端末ストア）
	selections := selection.NewRegistry(
		selection.NewFactory(selectionRepo, kv, collector, log),
		selection.DefaultIdleTTL,
	)

	// 5. ルーターの構築（configのレート制限はreq/min単位）
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitToggle),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:          log,
		HealthChecker:   db,
		MetricsGatherer: reg,
		StatusRecorder:  collector,

		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		IdentityConfig: middleware.IdentityConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			DeviceMaxAge: cfg.DeviceMaxAge,
		},
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS: cfg.CookieSecure,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		CatalogService:   catalogService,
		RecommendService: recommendService,
		Selections:       selections,
		ProfileService:   profileService,
		UserService:      userService,
	})

	return &apiServer{handler: router, rateLimiter: rateLimiter}
}

// newMetricsRegistry はGo・プロセスのメトリクスを登録済みのレジストリを返す。
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// openDeviceStore は匿名ユーザーの選択リストを保存するストアを開く。
// REDIS_URLが未設定の場合はプロセス内メモリを使う（単一インスタンス構成向け）。
func openDeviceStore(ctx context.Context, cfg *config.Config) (kvstore.Store, func(), error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL is not set; anonymous selections are kept in process memory")
		return kvstore.NewMemory(), func() {}, nil
	}

	store, client, err := kvstore.OpenRedis(ctx, cfg.RedisURL, cfg.DeviceStoreTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open device store: %w", err)
	}
	slog.Info("device store connection established")
	return store, func() { client.Close() }, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. 端末ストア
	kv, closeKV, err := openDeviceStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	// 3. ワイヤリング
	api := buildAPI(cfg, db, kv, newMetricsRegistry())
	defer api.Close()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      api.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serveUntilDone(ctx, server, "API server")
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、その後シャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}
	slog.Info(name + " stopped gracefully")
	return nil
}

// workerJobs はワーカーで動かすジョブ。
type workerJobs struct {
	scheduler *ingest.Scheduler
	cleanup   *cleanup.CleanupJob
}

// buildWorker は奨学金フィードの取り込みとクリーンアップのジョブを組み立てる。
func buildWorker(cfg *config.Config, db *sql.DB, collector *metrics.Collector) *workerJobs {
	sourceRepo := repository.NewPostgresIngestSourceRepo(db)
	scholarshipRepo := repository.NewPostgresScholarshipRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	fetcher := ingest.NewFetcher(
		sourceRepo, scholarshipRepo,
		security.NewSSRFGuard(), security.NewPlainTextSanitizer(),
		collector, slog.Default(),
		cfg.IngestTimeout, cfg.IngestMaxSize, cfg.IngestSourceRefresh,
	)
	scheduler := ingest.NewScheduler(sourceRepo, fetcher, slog.Default(), cfg.IngestMaxConcurrent)

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, scholarshipRepo, slog.Default())
	if cfg.ScholarshipRetentionDays > 0 {
		cleanupJob.RetentionDays = cfg.ScholarshipRetentionDays
	}

	return &workerJobs{scheduler: scheduler, cleanup: cleanupJob}
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、取り込みスケジューラとクリーンアップジョブを起動する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. メトリクス（METRICS_PORTが設定されている場合のみ公開）
	reg := newMetricsRegistry()
	jobs := buildWorker(cfg, db, metrics.NewCollector(reg))

	if cfg.MetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := serveUntilDone(ctx, metricsServer, "worker metrics server"); err != nil {
				slog.Error("worker metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	slog.Info("worker starting",
		slog.Duration("ingest_interval", cfg.IngestInterval),
		slog.Int("max_concurrent", cfg.IngestMaxConcurrent),
		slog.Int("retention_days", jobs.cleanup.RetentionDays),
	)

	// 3. クリーンアップジョブを日次でバックグラウンド実行（起動直後に1回実行）
	go func() {
		if err := jobs.cleanup.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}
		jobs.cleanup.Start(ctx, cleanupInterval)
	}()

	// 4. 取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	jobs.scheduler.Start(ctx, cfg.IngestInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runCleanup はクリーンアップジョブを1回だけ実行して終了する。
// cronなど外部スケジューラから起動する構成向け。
func runCleanup(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	jobs := buildWorker(cfg, db, metrics.NewCollector(prometheus.NewRegistry()))
	if err := jobs.cleanup.Run(ctx); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
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
