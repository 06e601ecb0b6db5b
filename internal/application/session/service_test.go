package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valid-names/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error {
	return m.Called(ctx, sessionID, newToken, newExpiry).Error(0)
}
func (m *mockSessionStore) Update(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	return m.Called(ctx, sessionID, updates).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, role, sessionID string) (string, error) {
	args := m.Called(userID, role, sessionID)
	return args.String(0), args.Error(1)
}

// --- helpers ---

var now = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func newSvc(us *mockUserStore, ss *mockSessionStore, jwt *mockJWTSigner) Service {
	return NewService(ServiceDeps{
		UserRepo:        us,
		SessionRepo:     ss,
		JWTProvider:     jwt,
		RefreshTokenDur: 24 * time.Hour,
		Now:             func() time.Time { return now },
	})
}

func existingUser(t *testing.T) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		UserID:       "user-123",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Enable:       1,
	}
}

// --- Login tests ---

func TestLogin_ByUsername(t *testing.T) {
	us, ss, jwt := &mockUserStore{}, &mockSessionStore{}, &mockJWTSigner{}
	us.On("GetByUsername", mock.Anything, "alice").Return(existingUser(t), nil)
	ss.On("Put", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.UserID == "user-123" && s.Enable && s.RefreshExpiresAt == now.Add(24*time.Hour).Unix()
	})).Return(nil)
	jwt.On("Sign", "user-123", domain.RoleUser, mock.AnythingOfType("string")).Return("bearer", nil)

	result, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Username: "alice", Password: "password123"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", result.Bearer)
	assert.Len(t, result.RefreshToken, 64)
	assert.Equal(t, "alice", result.Session.User.Username)
	ss.AssertExpectations(t)
}

func TestLogin_FallsBackToEmail(t *testing.T) {
	us, ss, jwt := &mockUserStore{}, &mockSessionStore{}, &mockJWTSigner{}
	us.On("GetByUsername", mock.Anything, "Alice@Example.com").Return(nil, domain.ErrNotFound)
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(existingUser(t), nil)
	ss.On("Put", mock.Anything, mock.Anything).Return(nil)
	jwt.On("Sign", mock.Anything, mock.Anything, mock.Anything).Return("bearer", nil)

	_, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Username: "Alice@Example.com", Password: "password123"})
	require.NoError(t, err)
	us.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	us, ss, jwt := &mockUserStore{}, &mockSessionStore{}, &mockJWTSigner{}
	us.On("GetByUsername", mock.Anything, "alice").Return(existingUser(t), nil)

	_, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Username: "alice", Password: "nope"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLogin_DisabledAccount(t *testing.T) {
	us, ss, jwt := &mockUserStore{}, &mockSessionStore{}, &mockJWTSigner{}
	u := existingUser(t)
	u.Enable = 0
	us.On("GetByUsername", mock.Anything, "alice").Return(u, nil)

	_, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Username: "alice", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_UnknownUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)
	us.On("GetByEmail", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	_, err := newSvc(us, &mockSessionStore{}, &mockJWTSigner{}).Login(context.Background(), LoginRequest{Username: "ghost", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// --- Refresh tests ---

func TestRefresh_RotatesToken(t *testing.T) {
	us, ss, jwt := &mockUserStore{}, &mockSessionStore{}, &mockJWTSigner{}
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(&domain.Session{
		SessionID: "s1", UserID: "user-123", Enable: true, RefreshExpiresAt: now.Add(time.Hour).Unix(),
	}, nil)
	us.On("Get", mock.Anything, "user-123").Return(existingUser(t), nil)
	ss.On("RotateRefreshToken", mock.Anything, "s1", mock.AnythingOfType("string"), now.Add(24*time.Hour).Unix()).Return(nil)
	jwt.On("Sign", "user-123", domain.RoleUser, "s1").Return("bearer", nil)

	bearer, next, err := newSvc(us, ss, jwt).Refresh(context.Background(), "old")

	require.NoError(t, err)
	assert.Equal(t, "bearer", bearer)
	assert.NotEqual(t, "old", next)
	ss.AssertExpectations(t)
}

func TestRefresh_Expired(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(&domain.Session{
		SessionID: "s1", UserID: "user-123", Enable: true, RefreshExpiresAt: now.Add(-time.Second).Unix(),
	}, nil)

	_, _, err := newSvc(&mockUserStore{}, ss, &mockJWTSigner{}).Refresh(context.Background(), "old")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_DisabledSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(&domain.Session{
		SessionID: "s1", UserID: "user-123", Enable: false, RefreshExpiresAt: now.Add(time.Hour).Unix(),
	}, nil)

	_, _, err := newSvc(&mockUserStore{}, ss, &mockJWTSigner{}).Refresh(context.Background(), "old")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_UnknownToken(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("GetByRefreshToken", mock.Anything, "nope").Return(nil, domain.ErrNotFound)

	_, _, err := newSvc(&mockUserStore{}, ss, &mockJWTSigner{}).Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// --- Logout / GetCurrent ---

func TestLogout_DisablesSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Update", mock.Anything, "s1", map[string]interface{}{fieldEnable: false}).Return(nil)

	require.NoError(t, newSvc(&mockUserStore{}, ss, &mockJWTSigner{}).Logout(context.Background(), "s1"))
	ss.AssertExpectations(t)
}

func TestGetCurrent_DisabledSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", Enable: false}, nil)

	_, err := newSvc(&mockUserStore{}, ss, &mockJWTSigner{}).GetCurrent(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGetCurrent_AttachesUser(t *testing.T) {
	us, ss := &mockUserStore{}, &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", UserID: "user-123", Enable: true}, nil)
	us.On("Get", mock.Anything, "user-123").Return(existingUser(t), nil)

	sess, err := newSvc(us, ss, &mockJWTSigner{}).GetCurrent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)
}
