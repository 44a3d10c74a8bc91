package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ghlogin/internal/middleware"
)

// HealthChecker はヘルスチェックでの依存先疎通確認インターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionValidator middleware.SessionValidator
	RateLimiter      *middleware.RateLimiter
	Logger           *slog.Logger

	// 認証
	AuthService    AuthServiceInterface
	SessionManager SessionManagerInterface
	Cookies        CookieConfig
	HomeURL        string

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → RateLimit → Session → Logging
//
// レート制限はセッション検証より前に評価される。
// クォータ超過時は永続化層に一切触れずに429を返すためである。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionManager, deps.Cookies, deps.HomeURL)

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// --- 運用エンドポイント（レート制限・セッション検証の外） ---
	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- アプリケーションルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())
		r.Use(middleware.NewCurrentSessionMiddleware(deps.SessionValidator))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))

		// OAuthフロー
		r.Route("/login/github", func(r chi.Router) {
			r.Get("/", authHandler.Login)
			r.Get("/callback", authHandler.Callback)
		})

		// セッション管理
		r.Post("/logout", authHandler.Logout)
		r.With(middleware.RequireAuth()).Post("/logout/all", authHandler.LogoutAll)
		r.With(middleware.RequireAuth()).Get("/me", authHandler.Me)
	})

	return r
}

// newHealthHandler は死活監視用ハンドラーを返す。
// checkerが指定された場合はDB疎通を確認し、失敗時は503を返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check db ping failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}

		w.Write([]byte(`{"status":"ok"}`))
	}
}
