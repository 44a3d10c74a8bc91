package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ghlogin/internal/auth"
	"github.com/hitoshi/ghlogin/internal/middleware"
	"github.com/hitoshi/ghlogin/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.LoginResult, error)
}

// SessionManagerInterface はログアウト処理が必要とするセッション操作。
type SessionManagerInterface interface {
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateUserSessions(ctx context.Context, userID string) error
}

// AuthHandler はGitHub OAuth認証とセッション管理のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionManagerInterface
	cookies  CookieConfig
	homeURL  string // ログイン完了後のリダイレクト先
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionManagerInterface, cookies CookieConfig, homeURL string) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		cookies:  cookies,
		homeURL:  homeURL,
	}
}

// Login はGitHub OAuthフローを開始する。
// GET /login/github
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	SetStateCookie(w, state, h.cookies)

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// Callback はGitHubからのOAuthコールバックを処理する。
// GET /login/github/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// stateクッキーは成否にかかわらず消費する
	stateCookie, cookieErr := r.Cookie(stateCookieName)
	ClearStateCookie(w, h.cookies)

	// 1. stateの検証（CSRF対策）
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" || cookieErr != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.Bool("has_code", code != ""),
			slog.Bool("has_state", state != ""),
			slog.Bool("has_cookie", cookieErr == nil),
		)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewStateMismatchError())
		return
	}

	// 2. 認可コード交換からセッション発行まで
	result, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		h.writeCallbackError(w, err)
		return
	}

	// 3. セッションCookieを設定（HTTP Only）
	SetSessionCookie(w, result.Token, result.Session.ExpiresAt, h.cookies)

	http.Redirect(w, r, h.homeURL, http.StatusFound)
}

// writeCallbackError はコールバック処理の失敗をHTTPステータスに対応付ける。
func (h *AuthHandler) writeCallbackError(w http.ResponseWriter, err error) {
	slog.Error("oauth callback failed", slog.String("error", err.Error()))

	switch {
	case errors.Is(err, model.ErrInvalidGrant):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidGrantError())
	case errors.Is(err, model.ErrNoEmail), errors.Is(err, model.ErrNoVerifiedEmail):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewNoVerifiedEmailError())
	case errors.Is(err, model.ErrUpstream):
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpstreamError())
	default:
		middleware.WriteInternalServerError(w)
	}
}

// Logout は現在のセッションを破棄する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	current, _ := middleware.CurrentSessionFromContext(r.Context())
	if current.Authenticated() {
		if err := h.sessions.Invalidate(r.Context(), current.Session.ID); err != nil {
			slog.Error("failed to invalidate session", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
	}

	// 未認証でもCookieをクリアしてトップへ戻す
	ClearSessionCookie(w, h.cookies)
	http.Redirect(w, r, h.homeURL, http.StatusFound)
}

// LogoutAll は現在のユーザーの全セッションを破棄する。
// POST /logout/all（要認証）
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.CurrentSessionFromContext(r.Context())
	if !ok || !current.Authenticated() {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.sessions.InvalidateUserSessions(r.Context(), current.User.ID); err != nil {
		slog.Error("failed to invalidate user sessions",
			slog.String("user_id", current.User.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	slog.Info("all sessions invalidated", slog.String("user_id", current.User.ID))
	ClearSessionCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /me（要認証）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.CurrentSessionFromContext(r.Context())
	if !ok || !current.Authenticated() {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":        current.User.ID,
		"github_id": current.User.GitHubID,
		"username":  current.User.Username,
		"email":     current.User.Email,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
