package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/scholarfind/internal/metrics"
	"github.com/hitoshi/scholarfind/internal/middleware"
)

// SelectionManager は選択リストの同期器の取得と破棄を提供する。*selection.Registryが実装する。
type SelectionManager interface {
	SelectionRegistry
	SelectionForgetter
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 運用
	Logger          *slog.Logger
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer
	StatusRecorder  middleware.StatusRecorder

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	IdentityConfig    middleware.IdentityConfig
	CSRFConfig        middleware.CSRFConfig
	HSTS              bool

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カタログ・推薦
	CatalogService   CatalogServiceInterface
	RecommendService RecommendServiceInterface

	// 選択リスト
	Selections SelectionManager

	// プロフィール・ユーザー
	ProfileService ProfileServiceInterface
	UserService    UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアの実行順序:
//
//	Logging → Metrics → Recovery → SecurityHeaders → CORS
//
// 閲覧・選択リストのルートは Identity → RateLimit(General) → CSRF を通り、
// 匿名でも端末IDで利用できる。トグルには専用のレート制限を追加する。
// プロフィールと退会は Session → RateLimit(General) → CSRF を通り、ログインが必須。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	catalogHandler := NewCatalogHandler(deps.CatalogService)
	recommendHandler := NewRecommendHandler(deps.RecommendService)
	selectionHandler := NewSelectionHandler(deps.Selections, deps.CatalogService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	userHandler := NewUserHandler(deps.UserService, deps.Selections, deps.AuthConfig)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 匿名・ログインどちらでも使えるルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.SessionFinder, deps.IdentityConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/api/catalog/{domain}", func(r chi.Router) {
			r.Get("/", catalogHandler.List)
			r.Get("/{id}", catalogHandler.Get)
		})
		r.Get("/api/microsites/{slug}", catalogHandler.Microsite)
		r.Get("/api/recommendations/{domain}", recommendHandler.Recommend)

		r.Route("/api/selections/{kind}/{domain}", func(r chi.Router) {
			r.Get("/", selectionHandler.GetSelection)
			r.Delete("/", selectionHandler.Clear)
			r.Get("/records", selectionHandler.Records)
			r.With(deps.RateLimiter.ToggleMiddleware()).Post("/{id}/toggle", selectionHandler.Toggle)
		})
	})

	// --- ログインが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/api/profile", profileHandler.Get)
		r.Put("/api/profile", profileHandler.Update)
		r.Delete("/api/users/me", userHandler.Withdraw)
	})

	return r
}
