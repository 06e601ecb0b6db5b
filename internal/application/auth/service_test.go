package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valid-names/internal/application/ratelimit"
	"github.com/valid-names/internal/application/token"
	"github.com/valid-names/internal/config"
	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/infrastructure/mail"
	"github.com/valid-names/internal/infrastructure/memory"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		cp := *u
		return &cp, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		cp := *u
		return &cp, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) SoftDeleteByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// --- helpers ---

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc      Service
	users    *mockUserStore
	sessions *mockSessionStore
	sender   *mail.MemorySender
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{t: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
	users := &mockUserStore{}
	sessions := &mockSessionStore{}
	sender := mail.NewMemorySender()
	dispatcher, err := mail.NewDispatcher("noreply@example.com", sender)
	require.NoError(t, err)

	limiter := ratelimit.NewService(ratelimit.ServiceDeps{
		Store: memory.NewAttemptStore(),
		Policies: config.RateLimits{
			Verification:  config.RateLimitPolicy{MaxAttempts: 5, Window: time.Hour},
			PasswordReset: config.RateLimitPolicy{MaxAttempts: 3, Window: time.Hour},
		},
		Retention: 24 * time.Hour,
		Now:       c.now,
	})
	tokens := token.NewService(token.ServiceDeps{
		TokenRepo: memory.NewTokenStore(),
		UserRepo:  users,
		TTL:       24 * time.Hour,
		Now:       c.now,
	})
	svc := NewService(ServiceDeps{
		Limiter:     limiter,
		Tokens:      tokens,
		UserRepo:    users,
		SessionRepo: sessions,
		Mailer:      dispatcher,
		BaseURL:     "https://validnames.dev",
		TokenTTL:    24 * time.Hour,
		Now:         c.now,
	})
	return &fixture{svc: svc, users: users, sessions: sessions, sender: sender, clock: c}
}

var tokenInLink = regexp.MustCompile(`token=([0-9a-f]{64})`)

// lastToken pulls the plaintext token out of the most recent email.
func (f *fixture) lastToken(t *testing.T) string {
	t.Helper()
	msgs := f.sender.Messages()
	require.NotEmpty(t, msgs)
	m := tokenInLink.FindStringSubmatch(msgs[len(msgs)-1].HTML)
	require.Len(t, m, 2)
	return m[1]
}

func alice() *domain.User {
	return &domain.User{UserID: "u1", Email: "a@b.com", FirstName: "Alice", Enable: 1, Role: domain.RoleUser}
}

// --- password reset ---

func TestRequestPasswordReset_FourthRequestLimited(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(alice(), nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "a@b.com", "10.0.0.1"))
	}
	err := f.svc.RequestPasswordReset(context.Background(), " A@B.com ", "10.0.0.1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	var rlErr *domain.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, domain.PurposePasswordReset, rlErr.Purpose)
	assert.Equal(t, f.clock.t.Add(time.Hour), rlErr.ResetTime)
	assert.Len(t, f.sender.Messages(), 3)
}

func TestRequestPasswordReset_UnknownEmailIsSilentButCounted(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "ghost@b.com").Return(nil, domain.ErrNotFound)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@b.com", ""))
	}
	assert.Empty(t, f.sender.Messages())

	err := f.svc.RequestPasswordReset(context.Background(), "ghost@b.com", "")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestRequestPasswordReset_DisabledAccountGetsNoMail(t *testing.T) {
	f := newFixture(t)
	u := alice()
	u.Enable = 0
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(u, nil)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "a@b.com", ""))
	assert.Empty(t, f.sender.Messages())
}

func TestRequestPasswordReset_StoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("dynamo down")
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, boom)

	err := f.svc.RequestPasswordReset(context.Background(), "a@b.com", "")
	assert.ErrorIs(t, err, boom)
}

func TestResetPassword_FullFlow(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(alice(), nil)
	f.users.On("Get", mock.Anything, "u1").Return(alice(), nil)
	var stored string
	f.users.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		h, ok := m[fieldPasswordHash].(string)
		stored = h
		return ok
	})).Return(nil).Once()
	f.sessions.On("SoftDeleteByUser", mock.Anything, "u1").Return(nil).Once()

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "a@b.com", "10.0.0.1"))
	msg := f.sender.Messages()[0]
	assert.Equal(t, "a@b.com", msg.To)
	assert.Contains(t, msg.HTML, "https://validnames.dev/reset-password?token=")
	raw := f.lastToken(t)

	f.clock.advance(23*time.Hour + 59*time.Minute)
	v, err := f.svc.ValidatePasswordResetToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", v.UserID)

	require.NoError(t, f.svc.ResetPassword(context.Background(), raw, "n3w-passw0rd"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("n3w-passw0rd")))

	err = f.svc.ResetPassword(context.Background(), raw, "another-one")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	f.users.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(alice(), nil)
	f.users.On("Get", mock.Anything, "u1").Return(alice(), nil)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "a@b.com", ""))
	raw := f.lastToken(t)
	f.clock.advance(24*time.Hour + time.Minute)

	_, err := f.svc.ValidatePasswordResetToken(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	err = f.svc.ResetPassword(context.Background(), raw, "n3w-passw0rd")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestPasswordReset_SecondRequestSupersedesFirst(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(alice(), nil)
	f.users.On("Get", mock.Anything, "u1").Return(alice(), nil)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "a@b.com", ""))
	first := f.lastToken(t)
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "a@b.com", ""))
	second := f.lastToken(t)

	_, err := f.svc.ValidatePasswordResetToken(context.Background(), first)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = f.svc.ValidatePasswordResetToken(context.Background(), second)
	assert.NoError(t, err)
}

// --- email verification ---

func TestEmailVerification_FullFlow(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(alice(), nil)
	f.users.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		return m[fieldEmailVerified] == true && m[fieldEmailVerifiedAt] != nil
	})).Return(nil).Once()

	res, err := f.svc.RequestEmailVerification(context.Background(), "u1", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "memory", res.Provider)
	assert.Contains(t, f.sender.Messages()[0].HTML, "https://validnames.dev/verify-email?token=")
	raw := f.lastToken(t)

	u, err := f.svc.ConfirmEmailVerification(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)
	require.NotNil(t, u.EmailVerifiedAt)

	_, err = f.svc.ConfirmEmailVerification(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	f.users.AssertExpectations(t)
}

func TestRequestEmailVerification_AlreadyVerified(t *testing.T) {
	f := newFixture(t)
	u := alice()
	u.EmailVerified = true
	f.users.On("Get", mock.Anything, "u1").Return(u, nil)

	_, err := f.svc.RequestEmailVerification(context.Background(), "u1", "")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Empty(t, f.sender.Messages())
}

func TestRequestEmailVerification_SixthRequestLimited(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(alice(), nil)

	for i := 0; i < 5; i++ {
		_, err := f.svc.RequestEmailVerification(context.Background(), "u1", "")
		require.NoError(t, err)
	}
	_, err := f.svc.RequestEmailVerification(context.Background(), "u1", "")
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	f.clock.advance(time.Hour + time.Millisecond)
	_, err = f.svc.RequestEmailVerification(context.Background(), "u1", "")
	assert.NoError(t, err)
}

func TestRequestEmailVerification_DispatchFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.users.On("Get", mock.Anything, "u1").Return(alice(), nil)
	f.sender.Err = errors.New("smtp refused")

	_, err := f.svc.RequestEmailVerification(context.Background(), "u1", "")
	assert.ErrorIs(t, err, f.sender.Err)
}

func TestConfirmEmailVerification_ResetTokenRejected(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(alice(), nil)
	f.users.On("Get", mock.Anything, "u1").Return(alice(), nil)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "a@b.com", ""))
	_, err := f.svc.ConfirmEmailVerification(context.Background(), f.lastToken(t))
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
