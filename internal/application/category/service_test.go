package category

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valid-names/internal/domain"
)

type mockApplicationStore struct{ mock.Mock }

func (m *mockApplicationStore) Get(ctx context.Context, applicationID string) (*domain.Application, error) {
	args := m.Called(ctx, applicationID)
	if a, _ := args.Get(0).(*domain.Application); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCategoryStore struct{ mock.Mock }

func (m *mockCategoryStore) Put(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCategoryStore) Get(ctx context.Context, categoryID string) (*domain.Category, error) {
	args := m.Called(ctx, categoryID)
	if c, _ := args.Get(0).(*domain.Category); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCategoryStore) ListByApplication(ctx context.Context, applicationID string) ([]domain.Category, error) {
	args := m.Called(ctx, applicationID)
	cs, _ := args.Get(0).([]domain.Category)
	return cs, args.Error(1)
}
func (m *mockCategoryStore) Update(ctx context.Context, categoryID string, updates map[string]interface{}) error {
	return m.Called(ctx, categoryID, updates).Error(0)
}
func (m *mockCategoryStore) Delete(ctx context.Context, categoryID string) error {
	return m.Called(ctx, categoryID).Error(0)
}

type mockDomainStore struct{ mock.Mock }

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

func newSvc(apps *mockApplicationStore, cats *mockCategoryStore, doms *mockDomainStore, checks *mockCheckStore) Service {
	return NewService(ServiceDeps{ApplicationRepo: apps, CategoryRepo: cats, DomainRepo: doms, CheckRepo: checks})
}

func TestCreate_RequiresOwnedApplication(t *testing.T) {
	apps, cats := &mockApplicationStore{}, &mockCategoryStore{}
	apps.On("Get", mock.Anything, "a1").Return(&domain.Application{ApplicationID: "a1", UserID: "u2"}, nil)

	_, err := newSvc(apps, cats, &mockDomainStore{}, &mockCheckStore{}).
		Create(context.Background(), "u1", "a1", domain.CategoryInput{Name: "brand"})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	cats.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreate_Success(t *testing.T) {
	apps, cats := &mockApplicationStore{}, &mockCategoryStore{}
	apps.On("Get", mock.Anything, "a1").Return(&domain.Application{ApplicationID: "a1", UserID: "u1"}, nil)
	cats.On("Put", mock.Anything, mock.MatchedBy(func(c *domain.Category) bool {
		return c.ApplicationID == "a1" && c.UserID == "u1" && c.Name == "brand"
	})).Return(nil)

	c, err := newSvc(apps, cats, &mockDomainStore{}, &mockCheckStore{}).
		Create(context.Background(), "u1", "a1", domain.CategoryInput{Name: " brand "})

	require.NoError(t, err)
	assert.NotEmpty(t, c.CategoryID)
}

func TestListByApplication_NotFound(t *testing.T) {
	apps := &mockApplicationStore{}
	apps.On("Get", mock.Anything, "nope").Return(nil, domain.ErrNotFound)

	_, err := newSvc(apps, &mockCategoryStore{}, &mockDomainStore{}, &mockCheckStore{}).
		ListByApplication(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_CascadesDomainsAndChecks(t *testing.T) {
	cats, doms, checks := &mockCategoryStore{}, &mockDomainStore{}, &mockCheckStore{}
	cats.On("Get", mock.Anything, "c1").Return(&domain.Category{CategoryID: "c1", UserID: "u1"}, nil)
	doms.On("ListByCategory", mock.Anything, "c1").Return([]domain.Domain{{DomainID: "d1"}, {DomainID: "d2"}}, nil)
	checks.On("DeleteByDomain", mock.Anything, mock.Anything).Return(nil)
	doms.On("Delete", mock.Anything, mock.Anything).Return(nil)
	cats.On("Delete", mock.Anything, "c1").Return(nil)

	require.NoError(t, newSvc(&mockApplicationStore{}, cats, doms, checks).Delete(context.Background(), "u1", "c1"))

	checks.AssertNumberOfCalls(t, "DeleteByDomain", 2)
	doms.AssertNumberOfCalls(t, "Delete", 2)
	cats.AssertExpectations(t)
}
