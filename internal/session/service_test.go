package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/ghlogin/internal/model"
	"github.com/hitoshi/ghlogin/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByGitHubIDFn func(ctx context.Context, githubID int64) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	if m.findByGitHubIDFn != nil {
		return m.findByGitHubIDFn(ctx, githubID)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

type mockSessionRepo struct {
	createFn           func(ctx context.Context, session *model.Session) error
	findByIDWithUserFn func(ctx context.Context, id string) (*model.Session, *model.User, error)
	updateExpiresAtFn  func(ctx context.Context, id string, expiresAt time.Time) error
	deleteByIDFn       func(ctx context.Context, id string) error
	deleteByUserIDFn   func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByIDWithUser(ctx context.Context, id string) (*model.Session, *model.User, error) {
	if m.findByIDWithUserFn != nil {
		return m.findByIDWithUserFn(ctx, id)
	}
	return nil, nil, nil
}

func (m *mockSessionRepo) UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error {
	if m.updateExpiresAtFn != nil {
		return m.updateExpiresAtFn(ctx, id, expiresAt)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func existingUser(id string) *mockUserRepo {
	return &mockUserRepo{
		findByIDFn: func(ctx context.Context, uid string) (*model.User, error) {
			if uid == id {
				return &model.User{ID: id, GitHubID: 12345, Username: "octocat", Email: "octo@example.com"}, nil
			}
			return nil, nil
		},
	}
}

// --- テスト ---

func TestCreate_SetsDerivedIDAndExpiry(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var created *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			created = session
			return nil
		},
	}

	svc := NewService(existingUser("user-1"), sessionRepo, nil, DefaultConfig())
	svc.now = func() time.Time { return fixed }

	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	session, err := svc.Create(ctx, token, "user-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created == nil {
		t.Fatal("session was not persisted")
	}
	if session.ID != DeriveSessionID(token) {
		t.Errorf("session ID = %q, want derived %q", session.ID, DeriveSessionID(token))
	}
	if session.ID == token {
		t.Error("raw token must never be used as the session ID")
	}
	wantExpiry := fixed.Add(30 * 24 * time.Hour)
	if !session.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, wantExpiry)
	}
	if session.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", session.UserID, "user-1")
	}
}

func TestCreate_UnknownUser_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&mockUserRepo{}, &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			t.Fatal("session must not be created for an unknown user")
			return nil
		},
	}, nil, DefaultConfig())

	_, err := svc.Create(ctx, "some-token", "no-such-user")
	if !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}

func TestValidate_FreshSession_ReturnsUnchanged(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := "fresh-session-token"
	id := DeriveSessionID(token)
	expiresAt := fixed.Add(30 * 24 * time.Hour)

	user := &model.User{ID: "user-1", GitHubID: 12345, Username: "octocat"}
	sessionRepo := &mockSessionRepo{
		findByIDWithUserFn: func(ctx context.Context, sid string) (*model.Session, *model.User, error) {
			if sid != id {
				return nil, nil, nil
			}
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: expiresAt}, user, nil
		},
		updateExpiresAtFn: func(ctx context.Context, sid string, e time.Time) error {
			t.Fatal("fresh session must not be renewed")
			return nil
		},
		deleteByIDFn: func(ctx context.Context, sid string) error {
			t.Fatal("fresh session must not be deleted")
			return nil
		},
	}

	svc := NewService(&mockUserRepo{}, sessionRepo, nil, DefaultConfig())
	svc.now = func() time.Time { return fixed }

	gotSession, gotUser, err := svc.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if gotSession == nil || gotUser == nil {
		t.Fatal("expected session and user")
	}
	if !gotSession.ExpiresAt.Equal(expiresAt) {
		t.Errorf("ExpiresAt = %v, want unchanged %v", gotSession.ExpiresAt, expiresAt)
	}
	if gotUser.ID != "user-1" {
		t.Errorf("user ID = %q, want %q", gotUser.ID, "user-1")
	}
}

func TestValidate_UnknownToken_ReturnsEmpty(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, nil, DefaultConfig())

	session, user, err := svc.Validate(context.Background(), "unknown-token")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if session != nil || user != nil {
		t.Error("expected empty result for unknown token")
	}
}

func TestValidate_ExpiredSession_DeletesAndReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := "expired-session-token"
	id := DeriveSessionID(token)

	var deletedID string
	sessionRepo := &mockSessionRepo{
		findByIDWithUserFn: func(ctx context.Context, sid string) (*model.Session, *model.User, error) {
			// ちょうどいま失効した（now >= expiresAt）
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: fixed}, &model.User{ID: "user-1"}, nil
		},
		deleteByIDFn: func(ctx context.Context, sid string) error {
			deletedID = sid
			return nil
		},
	}

	svc := NewService(&mockUserRepo{}, sessionRepo, nil, DefaultConfig())
	svc.now = func() time.Time { return fixed }

	session, user, err := svc.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if session != nil || user != nil {
		t.Error("expected empty result for expired session")
	}
	if deletedID != id {
		t.Errorf("deleted session = %q, want %q", deletedID, id)
	}
}

func TestValidate_ExpiredPurgeFailure_IsSwallowed(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sessionRepo := &mockSessionRepo{
		findByIDWithUserFn: func(ctx context.Context, sid string) (*model.Session, *model.User, error) {
			return &model.Session{ID: sid, UserID: "user-1", ExpiresAt: fixed.Add(-time.Hour)}, &model.User{ID: "user-1"}, nil
		},
		deleteByIDFn: func(ctx context.Context, sid string) error {
			return errors.New("db down")
		},
	}

	svc := NewService(&mockUserRepo{}, sessionRepo, nil, DefaultConfig())
	svc.now = func() time.Time { return fixed }

	session, user, err := svc.Validate(ctx, "some-token")
	if err != nil {
		t.Fatalf("purge failure must not surface, got %v", err)
	}
	if session != nil || user != nil {
		t.Error("expected empty result even when purge fails")
	}
}

func TestValidate_AtRenewalBoundary_ExtendsExpiry(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := "renewable-session-token"
	id := DeriveSessionID(token)
	// ちょうど境界: expiresAt - 15d == now
	expiresAt := fixed.Add(15 * 24 * time.Hour)

	var renewedTo time.Time
	sessionRepo := &mockSessionRepo{
		findByIDWithUserFn: func(ctx context.Context, sid string) (*model.Session, *model.User, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: expiresAt}, &model.User{ID: "user-1"}, nil
		},
		updateExpiresAtFn: func(ctx context.Context, sid string, e time.Time) error {
			renewedTo = e
			return nil
		},
	}

	svc := NewService(&mockUserRepo{}, sessionRepo, nil, DefaultConfig())
	svc.now = func() time.Time { return fixed }

	session, _, err := svc.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	want := fixed.Add(30 * 24 * time.Hour)
	if !renewedTo.Equal(want) {
		t.Errorf("renewed expiry persisted = %v, want %v", renewedTo, want)
	}
	if !session.ExpiresAt.Equal(want) {
		t.Errorf("returned ExpiresAt = %v, want %v", session.ExpiresAt, want)
	}
}

func TestValidate_OneSecondBeforeBoundary_NotRenewed(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// 境界の1秒手前: expiresAt - 15d == now + 1s
	expiresAt := fixed.Add(15*24*time.Hour + time.Second)

	sessionRepo := &mockSessionRepo{
		findByIDWithUserFn: func(ctx context.Context, sid string) (*model.Session, *model.User, error) {
			return &model.Session{ID: sid, UserID: "user-1", ExpiresAt: expiresAt}, &model.User{ID: "user-1"}, nil
		},
		updateExpiresAtFn: func(ctx context.Context, sid string, e time.Time) error {
			t.Fatal("session outside the renewal window must not be renewed")
			return nil
		},
	}

	svc := NewService(&mockUserRepo{}, sessionRepo, nil, DefaultConfig())
	svc.now = func() time.Time { return fixed }

	session, _, err := svc.Validate(ctx, "some-token")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !session.ExpiresAt.Equal(expiresAt) {
		t.Errorf("ExpiresAt = %v, want unchanged %v", session.ExpiresAt, expiresAt)
	}
}

func TestValidate_RenewalPersistFailure_ReturnsError(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sessionRepo := &mockSessionRepo{
		findByIDWithUserFn: func(ctx context.Context, sid string) (*model.Session, *model.User, error) {
			return &model.Session{ID: sid, UserID: "user-1", ExpiresAt: fixed.Add(24 * time.Hour)}, &model.User{ID: "user-1"}, nil
		},
		updateExpiresAtFn: func(ctx context.Context, sid string, e time.Time) error {
			return errors.New("db down")
		},
	}

	svc := NewService(&mockUserRepo{}, sessionRepo, nil, DefaultConfig())
	svc.now = func() time.Time { return fixed }

	if _, _, err := svc.Validate(ctx, "some-token"); err == nil {
		t.Fatal("expected error when renewal persistence fails")
	}
}

func TestInvalidate_DelegatesToRepository(t *testing.T) {
	var deletedID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}

	svc := NewService(&mockUserRepo{}, sessionRepo, nil, DefaultConfig())

	if err := svc.Invalidate(context.Background(), "session-id-1"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if deletedID != "session-id-1" {
		t.Errorf("deleted session = %q, want %q", deletedID, "session-id-1")
	}
}

func TestInvalidateUserSessions_DelegatesToRepository(t *testing.T) {
	var deletedUserID string
	sessionRepo := &mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			deletedUserID = userID
			return nil
		},
	}

	svc := NewService(&mockUserRepo{}, sessionRepo, nil, DefaultConfig())

	if err := svc.InvalidateUserSessions(context.Background(), "user-1"); err != nil {
		t.Fatalf("InvalidateUserSessions() error = %v", err)
	}
	if deletedUserID != "user-1" {
		t.Errorf("deleted user = %q, want %q", deletedUserID, "user-1")
	}
}
