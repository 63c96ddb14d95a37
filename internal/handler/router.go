// Package handler はリレーサーバーのルーティングを構成する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/taskfront/internal/metrics"
	"github.com/hitoshi/taskfront/internal/middleware"
	"github.com/hitoshi/taskfront/internal/relay"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	// CSRF がnilの場合はCSRF検証を行わない
	CSRF *middleware.CSRFConfig

	// リレー
	Relay       *relay.Handler
	RelayPrefix string

	// メトリクス。nilの場合は /metrics を公開しない
	Gatherer prometheus.Gatherer
}

// NewRouter はヘルスチェック、メトリクス、リレーのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → (リレーのみ) RateLimit → CSRF
//
// /health、/metrics、/csrf-token はレート制限の対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(middleware.NotFoundHandler())

	// --- 運用エンドポイント ---
	r.Get("/health", Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	if deps.CSRF != nil {
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(*deps.CSRF))
	}

	// --- リレー ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		if deps.CSRF != nil {
			r.Use(middleware.NewCSRFMiddleware(*deps.CSRF))
		}
		deps.Relay.Mount(r, deps.RelayPrefix)
	})

	return r
}
