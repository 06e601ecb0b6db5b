package domainname

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valid-names/internal/domain"
)

type mockCategoryStore struct{ mock.Mock }

func (m *mockCategoryStore) Get(ctx context.Context, categoryID string) (*domain.Category, error) {
	args := m.Called(ctx, categoryID)
	if c, _ := args.Get(0).(*domain.Category); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDomainStore struct{ mock.Mock }

func (m *mockDomainStore) Put(ctx context.Context, d *domain.Domain) error {
	return m.Called(ctx, d).Error(0)
}
func (m *mockDomainStore) Get(ctx context.Context, domainID string) (*domain.Domain, error) {
	args := m.Called(ctx, domainID)
	if d, _ := args.Get(0).(*domain.Domain); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockDomainStore) ListByCategory(ctx context.Context, categoryID string) ([]domain.Domain, error) {
	args := m.Called(ctx, categoryID)
	ds, _ := args.Get(0).([]domain.Domain)
	return ds, args.Error(1)
}
func (m *mockDomainStore) Delete(ctx context.Context, domainID string) error {
	return m.Called(ctx, domainID).Error(0)
}

type mockCheckStore struct{ mock.Mock }

func (m *mockCheckStore) DeleteByDomain(ctx context.Context, domainID string) error {
	return m.Called(ctx, domainID).Error(0)
}

func ownedCategory() *domain.Category {
	return &domain.Category{CategoryID: "c1", ApplicationID: "a1", UserID: "u1"}
}

func TestCreate_LowercasesLabel(t *testing.T) {
	cats, doms := &mockCategoryStore{}, &mockDomainStore{}
	cats.On("Get", mock.Anything, "c1").Return(ownedCategory(), nil)
	doms.On("ListByCategory", mock.Anything, "c1").Return([]domain.Domain{}, nil)
	doms.On("Put", mock.Anything, mock.MatchedBy(func(d *domain.Domain) bool {
		return d.Name == "validnames" && d.ApplicationID == "a1" && d.CategoryID == "c1"
	})).Return(nil)

	svc := NewService(ServiceDeps{CategoryRepo: cats, DomainRepo: doms, CheckRepo: &mockCheckStore{}})
	d, err := svc.Create(context.Background(), "u1", "c1", domain.DomainInput{Name: "ValidNames"})

	require.NoError(t, err)
	assert.Equal(t, "validnames", d.Name)
}

func TestCreate_InvalidLabel(t *testing.T) {
	cases := []string{"", "-lead", "trail-", "has.dot", "under_score", strings.Repeat("a", 64)}
	svc := NewService(ServiceDeps{CategoryRepo: &mockCategoryStore{}, DomainRepo: &mockDomainStore{}, CheckRepo: &mockCheckStore{}})
	for _, name := range cases {
		_, err := svc.Create(context.Background(), "u1", "c1", domain.DomainInput{Name: name})
		assert.ErrorIs(t, err, domain.ErrBadRequest, "label %q", name)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	cats, doms := &mockCategoryStore{}, &mockDomainStore{}
	cats.On("Get", mock.Anything, "c1").Return(ownedCategory(), nil)
	doms.On("ListByCategory", mock.Anything, "c1").Return([]domain.Domain{{Name: "acme"}}, nil)

	svc := NewService(ServiceDeps{CategoryRepo: cats, DomainRepo: doms, CheckRepo: &mockCheckStore{}})
	_, err := svc.Create(context.Background(), "u1", "c1", domain.DomainInput{Name: "ACME"})

	assert.ErrorIs(t, err, domain.ErrConflict)
	doms.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestDelete_RemovesChecks(t *testing.T) {
	doms, checks := &mockDomainStore{}, &mockCheckStore{}
	doms.On("Get", mock.Anything, "d1").Return(&domain.Domain{DomainID: "d1", UserID: "u1"}, nil)
	checks.On("DeleteByDomain", mock.Anything, "d1").Return(nil)
	doms.On("Delete", mock.Anything, "d1").Return(nil)

	svc := NewService(ServiceDeps{CategoryRepo: &mockCategoryStore{}, DomainRepo: doms, CheckRepo: checks})
	require.NoError(t, svc.Delete(context.Background(), "u1", "d1"))

	checks.AssertExpectations(t)
	doms.AssertExpectations(t)
}

func TestGet_OtherOwner(t *testing.T) {
	doms := &mockDomainStore{}
	doms.On("Get", mock.Anything, "d1").Return(&domain.Domain{DomainID: "d1", UserID: "u2"}, nil)

	svc := NewService(ServiceDeps{CategoryRepo: &mockCategoryStore{}, DomainRepo: doms, CheckRepo: &mockCheckStore{}})
	_, err := svc.Get(context.Background(), "u1", "d1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
