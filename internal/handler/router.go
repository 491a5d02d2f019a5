package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/wellbeat/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認可
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ダッシュボード
	DashboardService DashboardServiceInterface

	// Spotify連携
	SpotifyAuth  SpotifyAuthInterface
	SpotifyQuery SpotifyQueryInterface

	// セルフトラッキング
	TrackingService TrackingServiceInterface

	// Prometheusスクレイプ用ハンドラー
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → [Session → RateLimit(General)]
//
// 認可フロー（/auth/*）と/health、/metricsはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)
	spotifyHandler := NewSpotifyHandler(deps.SpotifyAuth, deps.SpotifyQuery)
	trackingHandler := NewTrackingHandler(deps.TrackingService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeSuccessResponse(w, http.StatusOK, "ok", nil)
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認可フロー
	r.Route("/auth", func(r chi.Router) {
		r.Get("/authorize", authHandler.Authorize)
		r.Get("/callback", authHandler.Callback)
	})

	// モバイル主導のSpotify認可URL発行（stateを発行するだけなので認証不要）
	r.Get("/api/spotify/authorize-url", spotifyHandler.AuthorizeURL)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/auth/logout", authHandler.Logout)

		// ダッシュボード
		r.Route("/api/dashboard", func(r chi.Router) {
			r.Get("/", dashboardHandler.GetLive)
			r.Get("/cached", dashboardHandler.GetCached)

			// POST /api/dashboard/sync - 強制同期（同期専用レート制限を追加）
			r.With(deps.RateLimiter.SyncMiddleware()).Post("/sync", dashboardHandler.SyncNow)
		})

		// Spotify連携・再生データ
		r.Route("/api/spotify", func(r chi.Router) {
			r.Post("/exchange-token", spotifyHandler.ExchangeToken)
			r.Get("/current-track", spotifyHandler.CurrentTrack)
			r.Get("/recent-tracks", spotifyHandler.RecentTracks)
		})

		// セルフトラッキング
		r.Route("/api/mental-health", func(r chi.Router) {
			r.Route("/conditions", func(r chi.Router) {
				r.Get("/", trackingHandler.ListConditions)
				r.Post("/", trackingHandler.AddCondition)
				r.Delete("/{id}", trackingHandler.DeleteCondition)
			})
			r.Route("/medications", func(r chi.Router) {
				r.Get("/", trackingHandler.ListMedications)
				r.Post("/", trackingHandler.AddMedication)
				r.Delete("/{id}", trackingHandler.DeleteMedication)
				r.Put("/{id}/toggle", trackingHandler.ToggleMedication)
			})
		})
	})

	return r
}
