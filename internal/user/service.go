// Package user はGitHubアカウントとローカルユーザーの対応付けを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ghlogin/internal/model"
	"github.com/hitoshi/ghlogin/internal/repository"
)

// Service はユーザーの検索・作成のサービス層。
// アカウントの更新やマージは行わない。作成は初回ログイン時の1回のみ。
type Service struct {
	repo repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

// FindByGitHubID はGitHubアカウントIDでユーザーを検索する。
// 見つからない場合は(nil, nil)を返す。
func (s *Service) FindByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	user, err := s.repo.FindByGitHubID(ctx, githubID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by GitHub ID: %w", err)
	}
	return user, nil
}

// Create は新規ユーザーを作成する。
// フィールド制約違反はmodel.ErrInvalidArgument、github_idの重複は
// リポジトリ経由でmodel.ErrConflictとして返る（一意性の強制はストア側）。
func (s *Service) Create(ctx context.Context, githubID int64, email, username string) (*model.User, error) {
	if githubID <= 0 {
		return nil, fmt.Errorf("github_id must be positive: %w", model.ErrInvalidArgument)
	}
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", model.ErrInvalidArgument)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("email %q is malformed: %w", email, model.ErrInvalidArgument)
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		GitHubID:  githubID,
		Username:  username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.Int64("github_id", githubID),
		slog.String("username", username),
	)

	return user, nil
}
