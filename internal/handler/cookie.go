// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"net/http"
	"time"
)

const (
	sessionCookieName = "session"
	stateCookieName   = "github_oauth_state"
)

// CookieConfig はCookie属性の設定。
type CookieConfig struct {
	Secure            bool
	Domain            string
	StateCookieMaxAge int // OAuth state Cookieの有効期間（秒）
}

// SetSessionCookie はセッショントークンをHttpOnly Cookieとして設定する。
// 有効期限はセッションの絶対期限に揃える。
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを即時失効させる。
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetStateCookie はOAuth stateをHttpOnly Cookieとして設定する。
func SetStateCookie(w http.ResponseWriter, state string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   config.StateCookieMaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie はOAuth state Cookieを即時失効させる。
// コールバックの成否にかかわらず呼び出すこと。
func ClearStateCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
