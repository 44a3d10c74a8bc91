// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ghlogin/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// currentSessionContextKey はリクエストコンテキストに検証結果を格納するためのキー。
var currentSessionContextKey = contextKey("current_session")

// CurrentSession はリクエストごとに1回だけ計算されるセッション検証結果。
// 未認証の場合は両フィールドともnil。
type CurrentSession struct {
	Session *model.Session
	User    *model.User
}

// Authenticated は有効なセッションを持つかどうかを返す。
func (c CurrentSession) Authenticated() bool {
	return c.Session != nil && c.User != nil
}

// SessionValidator はセッショントークンの検証インターフェース。
// session.Serviceの部分集合として定義する。
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*model.Session, *model.User, error)
}

// NewCurrentSessionMiddleware はCookieのセッショントークンを検証し、
// 結果をリクエストコンテキストに注入するミドルウェアを返す。
// 検証はリクエストごとに1回だけ行われ、ハンドラーは
// CurrentSessionFromContextで再問い合わせなしに結果を参照する。
// Cookieが無い場合は永続化層に触れず空の結果を注入する。
// 未認証でも拒否はしない。認証必須のルートにはRequireAuthを重ねる。
func NewCurrentSessionMiddleware(validator SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := CurrentSession{}

			cookie, err := r.Cookie(SessionCookieName)
			if err == nil && cookie.Value != "" {
				session, user, err := validator.Validate(r.Context(), cookie.Value)
				if err != nil {
					slog.Error("failed to validate session",
						slog.String("error", err.Error()),
					)
					WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
					return
				}
				current.Session = session
				current.User = user
			}

			ctx := ContextWithCurrentSession(r.Context(), current)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth は有効なセッションを持たないリクエストに401を返すミドルウェアを返す。
// NewCurrentSessionMiddlewareの後に配置すること。
func RequireAuth() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current, ok := CurrentSessionFromContext(r.Context())
			if !ok || !current.Authenticated() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentSessionFromContext はリクエストコンテキストからセッション検証結果を取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func CurrentSessionFromContext(ctx context.Context) (CurrentSession, bool) {
	current, ok := ctx.Value(currentSessionContextKey).(CurrentSession)
	return current, ok
}

// ContextWithCurrentSession はコンテキストにセッション検証結果を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithCurrentSession(ctx context.Context, current CurrentSession) context.Context {
	return context.WithValue(ctx, currentSessionContextKey, current)
}
