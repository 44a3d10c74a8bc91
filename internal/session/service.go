package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ghlogin/internal/model"
	"github.com/hitoshi/ghlogin/internal/repository"
)

// MetricsRecorder はセッションライフサイクルのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordSessionCreated()
	RecordSessionRenewed()
	RecordSessionExpired()
}

// Config はセッションストアの設定。
type Config struct {
	// TTL はセッションの有効期間。作成時と延長時に適用される。
	TTL time.Duration
	// RenewalGrace は失効前のこの期間内に使用されたセッションを延長する窓。
	RenewalGrace time.Duration
}

// DefaultConfig はデフォルトのセッション設定（30日有効、失効15日前から延長）を返す。
func DefaultConfig() Config {
	return Config{
		TTL:          30 * 24 * time.Hour,
		RenewalGrace: 15 * 24 * time.Hour,
	}
}

// Service はセッションの発行・検証・失効を提供する。
// UserとSessionの永続化はリポジトリ経由でのみ行う。
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	metrics  MetricsRecorder
	config   Config

	// now はテストから差し替え可能な現在時刻取得関数。
	now func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	metrics MetricsRecorder,
	config Config,
) *Service {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.RenewalGrace <= 0 {
		config.RenewalGrace = DefaultConfig().RenewalGrace
	}
	return &Service{
		users:    users,
		sessions: sessions,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

// Create はトークンからセッションを発行して永続化する。
// userIDが存在しない場合はmodel.ErrUserNotFoundをラップして返す
// （呼び出し側のバグを検出するためのガードであり、ユーザー向けフローではない）。
func (s *Service) Create(ctx context.Context, token, userID string) (*model.Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session owner: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, model.ErrUserNotFound)
	}

	now := s.now()
	session := &model.Session{
		ID:        DeriveSessionID(token),
		UserID:    userID,
		ExpiresAt: now.Add(s.config.TTL),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}

	return session, nil
}

// Validate はトークンを検証し、セッションと所有ユーザーを返す。
//   - セッションが存在しない場合は(nil, nil, nil)。
//   - 期限切れの場合は該当行を削除して(nil, nil, nil)。削除は
//     ベストエフォートで、失敗はログに記録して握りつぶす。
//   - 失効までRenewalGrace以内の場合は有効期限をnow+TTLに延長して返す。
//     同一トークンの並行検証が両方この分岐に入っても、期限は後勝ちで
//     短くなることはない。
//   - それ以外はそのまま返す。
func (s *Service) Validate(ctx context.Context, token string) (*model.Session, *model.User, error) {
	id := DeriveSessionID(token)

	session, user, err := s.sessions.FindByIDWithUser(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	now := s.now()

	// 期限切れ: 次回以降の検索から消えるよう遅延削除する
	if !now.Before(session.ExpiresAt) {
		if err := s.sessions.DeleteByID(ctx, id); err != nil {
			slog.Warn("failed to purge expired session",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
		if s.metrics != nil {
			s.metrics.RecordSessionExpired()
		}
		return nil, nil, nil
	}

	// スライディング延長: 失効までRenewalGrace以内なら期限を進める
	if !now.Before(session.ExpiresAt.Add(-s.config.RenewalGrace)) {
		newExpiresAt := now.Add(s.config.TTL)
		if err := s.sessions.UpdateExpiresAt(ctx, id, newExpiresAt); err != nil {
			return nil, nil, fmt.Errorf("failed to renew session: %w", err)
		}
		session.ExpiresAt = newExpiresAt
		if s.metrics != nil {
			s.metrics.RecordSessionRenewed()
		}
	}

	return session, user, nil
}

// Invalidate は指定IDのセッションを失効させる。既に存在しない場合も成功扱い。
func (s *Service) Invalidate(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// InvalidateUserSessions は指定ユーザーの全セッションを失効させる。
// 全端末からのサインアウトに使用する。
func (s *Service) InvalidateUserSessions(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to invalidate user sessions: %w", err)
	}
	slog.Info("all sessions invalidated", slog.String("user_id", userID))
	return nil
}
