// Package model はドメインモデルを定義する。
package model

import "time"

// User はGitHubアカウントと1:1で紐付くサービス利用ユーザーを表す。
// GitHubIDは不変かつ全ユーザー間で一意。初回ログイン時にのみ作成される。
type User struct {
	ID        string
	GitHubID  int64
	Username  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// IDはクライアントが保持するセッショントークンのSHA-256ハッシュであり、
// トークンそのものはサーバー側に保存されない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
