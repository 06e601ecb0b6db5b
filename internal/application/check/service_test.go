package check

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/infrastructure/mail"
)

// --- mocks ---

type mockDomainStore struct{ mock.Mock }

func (m *mockDomainStore) Get(ctx context.Context, domainID string) (*domain.Domain, error) {
	args := m.Called(ctx, domainID)
	if d, _ := args.Get(0).(*domain.Domain); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTLDStore struct{ mock.Mock }

func (m *mockTLDStore) ListEnabled(ctx context.Context) ([]domain.TLD, error) {
	args := m.Called(ctx)
	ts, _ := args.Get(0).([]domain.TLD)
	return ts, args.Error(1)
}

type mockCheckStore struct{ mock.Mock }

func (m *mockCheckStore) Put(ctx context.Context, c *domain.Check) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCheckStore) Get(ctx context.Context, domainID, tld string) (*domain.Check, error) {
	args := m.Called(ctx, domainID, tld)
	if c, _ := args.Get(0).(*domain.Check); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCheckStore) ListByDomain(ctx context.Context, domainID string) ([]domain.Check, error) {
	args := m.Called(ctx, domainID)
	cs, _ := args.Get(0).([]domain.Check)
	return cs, args.Error(1)
}
func (m *mockCheckStore) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Check, error) {
	args := m.Called(ctx, before, limit)
	cs, _ := args.Get(0).([]domain.Check)
	return cs, args.Error(1)
}

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLookup struct{ mock.Mock }

func (m *mockLookup) Lookup(ctx context.Context, fqdn string) (*domain.LookupResult, error) {
	args := m.Called(ctx, fqdn)
	if r, _ := args.Get(0).(*domain.LookupResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- fixture ---

var now = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	domains *mockDomainStore
	tlds    *mockTLDStore
	checks  *mockCheckStore
	notes   *mockNotificationStore
	users   *mockUserStore
	lookup  *mockLookup
	sender  *mail.MemorySender
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		domains: &mockDomainStore{},
		tlds:    &mockTLDStore{},
		checks:  &mockCheckStore{},
		notes:   &mockNotificationStore{},
		users:   &mockUserStore{},
		lookup:  &mockLookup{},
		sender:  mail.NewMemorySender(),
	}
	dispatcher, err := mail.NewDispatcher("Valid Names <noreply@example.com>", f.sender)
	require.NoError(t, err)
	f.svc = NewService(ServiceDeps{
		DomainRepo:       f.domains,
		TLDRepo:          f.tlds,
		CheckRepo:        f.checks,
		NotificationRepo: f.notes,
		UserRepo:         f.users,
		Lookup:           f.lookup,
		Mailer:           dispatcher,
		Concurrency:      2,
		Now:              func() time.Time { return now },
	})
	return f
}

func tracked() *domain.Domain {
	return &domain.Domain{DomainID: "d1", ApplicationID: "a1", UserID: "u1", Name: "acme"}
}

func years(n int) *time.Time {
	t := now.AddDate(-n, 0, -1)
	return &t
}

// --- TrustScore ---

func TestTrustScore(t *testing.T) {
	cases := []struct {
		name string
		res  domain.LookupResult
		want *int
	}{
		{"available", domain.LookupResult{Available: true}, nil},
		{"bare registration", domain.LookupResult{}, intPtr(40)},
		{"two years with registrar", domain.LookupResult{RegisteredAt: years(2), Registrar: "Gandi"}, intPtr(65)},
		{"age is capped", domain.LookupResult{RegisteredAt: years(20)}, intPtr(70)},
		{"everything", domain.LookupResult{RegisteredAt: years(10), Registrar: "Gandi", DNSSEC: true}, intPtr(100)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TrustScore(&tc.res, now))
		})
	}
}

func intPtr(n int) *int { return &n }

// --- RunChecks ---

func TestRunChecks_OneCheckPerEnabledTLD(t *testing.T) {
	f := newFixture(t)
	f.domains.On("Get", mock.Anything, "d1").Return(tracked(), nil)
	f.tlds.On("ListEnabled", mock.Anything).Return([]domain.TLD{{Name: "com"}, {Name: "dev"}, {Name: "io"}}, nil)
	f.checks.On("Get", mock.Anything, "d1", mock.Anything).Return(nil, domain.ErrNotFound)
	f.lookup.On("Lookup", mock.Anything, "acme.com").Return(&domain.LookupResult{Registrar: "Gandi", RegisteredAt: years(3)}, nil)
	f.lookup.On("Lookup", mock.Anything, "acme.dev").Return(&domain.LookupResult{Available: true}, nil)
	f.lookup.On("Lookup", mock.Anything, "acme.io").Return(nil, errors.New("timeout"))
	f.checks.On("Put", mock.Anything, mock.Anything).Return(nil)

	got, err := f.svc.RunChecks(context.Background(), "u1", "d1")

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "acme.com", got[0].FQDN)
	assert.False(t, got[0].Available)
	assert.Equal(t, 70, *got[0].TrustScore)
	assert.Equal(t, 1097, *got[0].DomainAgeDays)
	assert.True(t, got[1].Available)
	assert.Nil(t, got[1].TrustScore)
	assert.Equal(t, domain.CheckStatusError, got[2].Status)
	assert.Equal(t, "timeout", got[2].Error)
	f.checks.AssertNumberOfCalls(t, "Put", 3)
	f.notes.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRunChecks_FlipToAvailableNotifies(t *testing.T) {
	f := newFixture(t)
	f.domains.On("Get", mock.Anything, "d1").Return(tracked(), nil)
	f.tlds.On("ListEnabled", mock.Anything).Return([]domain.TLD{{Name: "com"}}, nil)
	f.checks.On("Get", mock.Anything, "d1", "com").Return(&domain.Check{Available: false, Status: domain.CheckStatusOK}, nil)
	f.lookup.On("Lookup", mock.Anything, "acme.com").Return(&domain.LookupResult{Available: true}, nil)
	f.checks.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.notes.On("Put", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "u1" && n.FQDN == "acme.com" && !n.Read
	})).Return(nil)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "a@b.com", FirstName: "Ana"}, nil)

	_, err := f.svc.RunChecks(context.Background(), "u1", "d1")

	require.NoError(t, err)
	f.notes.AssertExpectations(t)
	msgs := f.sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@b.com", msgs[0].To)
	assert.Equal(t, "acme.com is available", msgs[0].Subject)
}

func TestRunChecks_StillAvailableDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	f.domains.On("Get", mock.Anything, "d1").Return(tracked(), nil)
	f.tlds.On("ListEnabled", mock.Anything).Return([]domain.TLD{{Name: "com"}}, nil)
	f.checks.On("Get", mock.Anything, "d1", "com").Return(&domain.Check{Available: true, Status: domain.CheckStatusOK}, nil)
	f.lookup.On("Lookup", mock.Anything, "acme.com").Return(&domain.LookupResult{Available: true}, nil)
	f.checks.On("Put", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.RunChecks(context.Background(), "u1", "d1")

	require.NoError(t, err)
	f.notes.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	assert.Empty(t, f.sender.Messages())
}

func TestRunChecks_MailFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sender.Err = errors.New("smtp down")
	f.domains.On("Get", mock.Anything, "d1").Return(tracked(), nil)
	f.tlds.On("ListEnabled", mock.Anything).Return([]domain.TLD{{Name: "com"}}, nil)
	f.checks.On("Get", mock.Anything, "d1", "com").Return(&domain.Check{Available: false}, nil)
	f.lookup.On("Lookup", mock.Anything, "acme.com").Return(&domain.LookupResult{Available: true}, nil)
	f.checks.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.notes.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{Email: "a@b.com"}, nil)

	_, err := f.svc.RunChecks(context.Background(), "u1", "d1")
	require.NoError(t, err)
}

func TestRunChecks_PersistenceFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.domains.On("Get", mock.Anything, "d1").Return(tracked(), nil)
	f.tlds.On("ListEnabled", mock.Anything).Return([]domain.TLD{{Name: "com"}}, nil)
	f.checks.On("Get", mock.Anything, "d1", "com").Return(nil, domain.ErrNotFound)
	f.lookup.On("Lookup", mock.Anything, "acme.com").Return(&domain.LookupResult{}, nil)
	f.checks.On("Put", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	_, err := f.svc.RunChecks(context.Background(), "u1", "d1")
	assert.EqualError(t, err, "throttled")
}

func TestRunChecks_OtherOwner(t *testing.T) {
	f := newFixture(t)
	f.domains.On("Get", mock.Anything, "d1").Return(tracked(), nil)

	_, err := f.svc.RunChecks(context.Background(), "u2", "d1")

	assert.ErrorIs(t, err, domain.ErrForbidden)
	f.lookup.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

// --- RefreshStale ---

func TestRefreshStale_RerunsAndSkipsDeletedDomains(t *testing.T) {
	f := newFixture(t)
	f.checks.On("ListStale", mock.Anything, now.Add(-24*time.Hour), 10).Return([]domain.Check{
		{DomainID: "d1", TLD: "com"},
		{DomainID: "gone", TLD: "com"},
	}, nil)
	f.domains.On("Get", mock.Anything, "d1").Return(tracked(), nil)
	f.domains.On("Get", mock.Anything, "gone").Return(nil, domain.ErrNotFound)
	f.checks.On("Get", mock.Anything, "d1", "com").Return(&domain.Check{Available: false}, nil)
	f.lookup.On("Lookup", mock.Anything, "acme.com").Return(&domain.LookupResult{}, nil)
	f.checks.On("Put", mock.Anything, mock.Anything).Return(nil)

	n, err := f.svc.RefreshStale(context.Background(), 24*time.Hour, 10)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	f.lookup.AssertNumberOfCalls(t, "Lookup", 1)
}
