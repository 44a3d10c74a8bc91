// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/ghlogin/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByGitHubID はGitHubアカウントIDでユーザーを検索する。
	// github_idは一意のため最大1件。見つからない場合はnilを返す。
	FindByGitHubID(ctx context.Context, githubID int64) (*model.User, error)

	// Create はユーザーを作成する。
	// github_idの一意制約違反の場合はmodel.ErrConflictをラップして返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// 期限切れ判定はサービス層が行うため、リポジトリは期限でフィルタしない。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByIDWithUser は指定IDのセッションと所有ユーザーを1回のクエリで取得する。
	// 見つからない場合は(nil, nil)を返す。
	FindByIDWithUser(ctx context.Context, id string) (*model.Session, *model.User, error)

	// UpdateExpiresAt はセッションの有効期限を更新する。
	UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error

	// DeleteByID は指定IDのセッションを削除する。存在しない場合も成功扱い。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
