// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// サービス層が返す番兵エラー。ハンドラーがerrors.IsでHTTPステータスに変換する。
var (
	// ErrUserNotFound は指定されたユーザーが存在しないことを示す。
	ErrUserNotFound = errors.New("user not found")
	// ErrConflict は一意制約違反（同一GitHub IDのユーザーが既に存在）を示す。
	ErrConflict = errors.New("user already exists")
	// ErrInvalidArgument はフィールド制約違反を示す。
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidGrant は認可コード交換がプロバイダーに拒否されたことを示す。
	ErrInvalidGrant = errors.New("invalid authorization grant")
	// ErrUpstream はプロバイダーAPIの呼び出し失敗または不正なレスポンスを示す。
	ErrUpstream = errors.New("upstream provider error")
	// ErrNoEmail はプロバイダーからメールアドレスを1件も取得できなかったことを示す。
	ErrNoEmail = errors.New("no email addresses returned")
	// ErrNoVerifiedEmail は検証済みメールアドレスが1件もないことを示す。
	ErrNoVerifiedEmail = errors.New("no verified email address")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInvalidGrant   = "INVALID_GRANT"
	ErrCodeUpstreamError  = "UPSTREAM_ERROR"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStateMismatchError はOAuth stateの検証失敗エラーを生成する。
func NewStateMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "不正なリクエスト、またはstateが一致しません。",
		Category: "auth",
		Action:   "ログインを最初からやり直してください。",
	}
}

// NewInvalidGrantError は認可コード交換失敗エラーを生成する。
func NewInvalidGrantError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGrant,
		Message:  "認可コードが無効です。",
		Category: "auth",
		Action:   "ログインを最初からやり直してください。",
	}
}

// NewUpstreamError はGitHub API呼び出し失敗エラーを生成する。
func NewUpstreamError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  "GitHubからの情報取得に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNoVerifiedEmailError は検証済みメールアドレス未登録エラーを生成する。
func NewNoVerifiedEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "検証済みメールアドレスを取得できませんでした。",
		Category: "auth",
		Action:   "GitHubアカウントで少なくとも1件のメールアドレスを検証してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternalError,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
