// Package auth はGitHub OAuthログインフローのオーケストレーションを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/ghlogin/internal/model"
	"github.com/hitoshi/ghlogin/internal/session"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
	// FetchUser はユーザープロフィールを取得する。
	FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error)
	// FetchEmails はメールアドレス一覧を取得する。
	FetchEmails(ctx context.Context, accessToken string) ([]GitHubEmail, error)
}

// UserResolver はGitHubアカウントをローカルユーザーに解決するインターフェース。
type UserResolver interface {
	FindByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	Create(ctx context.Context, githubID int64, email, username string) (*model.User, error)
}

// SessionIssuer はセッション発行のインターフェース。
type SessionIssuer interface {
	Create(ctx context.Context, token, userID string) (*model.Session, error)
}

// MetricsRecorder はログインフローのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(stage string)
	RecordUserCreated()
}

// Service はOAuthコールバック処理のビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	users    UserResolver
	sessions SessionIssuer
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(oauth OAuthProvider, users UserResolver, sessions SessionIssuer, metrics MetricsRecorder) *Service {
	return &Service{
		oauth:    oauth,
		users:    users,
		sessions: sessions,
		metrics:  metrics,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// LoginResult はコールバック処理の成功結果。
// Tokenはクライアントに渡す生のセッショントークンで、サーバー側には保存されない。
type LoginResult struct {
	Session *model.Session
	Token   string
	User    *model.User
}

// resolvedIdentity は既存ユーザーか新規サインアップかを1回だけ判定した結果。
// existingがnilでなければ既存ユーザー、nilなら残りのフィールドで新規作成する。
type resolvedIdentity struct {
	existing *model.User

	githubID int64
	email    string
	username string
}

// HandleCallback は検証済みの認可コードを受け取り、ログインを完了する。
// 処理順: コード交換 → プロフィール取得 → ユーザー解決（必要なら作成）
// → セッション発行。各ステップは失敗時にそこで終端し、リトライしない。
// レート制限とstate検証は呼び出し側（ミドルウェアとハンドラー）が先に行う。
func (s *Service) HandleCallback(ctx context.Context, code string) (*LoginResult, error) {
	// 1. 認可コードをアクセストークンに交換
	accessToken, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.recordFailure("exchange")
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. プロフィール取得
	profile, err := s.oauth.FetchUser(ctx, accessToken)
	if err != nil {
		s.recordFailure("profile")
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	// 3. 既存ユーザーか新規かを1回だけ判定する
	identity, err := s.resolveIdentity(ctx, accessToken, profile)
	if err != nil {
		return nil, err
	}

	// 4. ユーザーの確定。既存ならプロフィールの変化は同期しない。
	var user *model.User
	if identity.existing != nil {
		user = identity.existing
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.Int64("github_id", user.GitHubID),
		)
	} else {
		user, err = s.users.Create(ctx, identity.githubID, identity.email, identity.username)
		if err != nil {
			s.recordFailure("user_create")
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		if user == nil || user.ID == "" {
			s.recordFailure("user_create")
			return nil, fmt.Errorf("user creation returned no usable identifier for github_id %d", identity.githubID)
		}
		if s.metrics != nil {
			s.metrics.RecordUserCreated()
		}
	}

	// 5. セッション発行。ここで失敗しても作成済みユーザーは有効なまま残り、
	// 次回ログインで既存ユーザーとして解決される。
	token, err := session.GenerateToken()
	if err != nil {
		s.recordFailure("session")
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	sess, err := s.sessions.Create(ctx, token, user.ID)
	if err != nil {
		s.recordFailure("session")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}

	return &LoginResult{Session: sess, Token: token, User: user}, nil
}

// resolveIdentity はプロバイダーIDでローカルユーザーを検索し、
// 未登録の場合はメールアドレス一覧から新規作成に必要な情報を集める。
func (s *Service) resolveIdentity(ctx context.Context, accessToken string, profile *GitHubUser) (resolvedIdentity, error) {
	existing, err := s.users.FindByGitHubID(ctx, profile.ID)
	if err != nil {
		s.recordFailure("resolve")
		return resolvedIdentity{}, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if existing != nil {
		return resolvedIdentity{existing: existing}, nil
	}

	// 新規ユーザー: メールアドレス一覧は別途取得が必要
	emails, err := s.oauth.FetchEmails(ctx, accessToken)
	if err != nil {
		s.recordFailure("email")
		return resolvedIdentity{}, fmt.Errorf("failed to fetch email list: %w", err)
	}
	if len(emails) == 0 {
		s.recordFailure("email")
		return resolvedIdentity{}, fmt.Errorf("email list for %s is empty: %w", profile.Login, model.ErrNoEmail)
	}

	email, err := selectVerifiedEmail(emails, profile.Login)
	if err != nil {
		s.recordFailure("email")
		return resolvedIdentity{}, err
	}

	return resolvedIdentity{
		githubID: profile.ID,
		email:    email,
		username: profile.Login,
	}, nil
}

// selectVerifiedEmail は登録に使用するメールアドレスを選択する。
// 選択順: primaryかつverifiedの先頭 → verifiedの先頭（警告ログ付き）。
// どちらも無ければmodel.ErrNoVerifiedEmailをラップして返す。
func selectVerifiedEmail(emails []GitHubEmail, username string) (string, error) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}

	for _, e := range emails {
		if e.Verified {
			slog.Warn("using non-primary verified email",
				slog.String("username", username),
				slog.String("email", e.Email),
			)
			return e.Email, nil
		}
	}

	return "", fmt.Errorf("no verified email for %s: %w", username, model.ErrNoVerifiedEmail)
}

func (s *Service) recordFailure(stage string) {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure(stage)
	}
}
