package category

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/pkg/id"
)

const fieldName = "name"

type Service interface {
	Create(ctx context.Context, userID, applicationID string, input domain.CategoryInput) (*domain.Category, error)
	ListByApplication(ctx context.Context, userID, applicationID string) ([]domain.Category, error)
	Get(ctx context.Context, userID, categoryID string) (*domain.Category, error)
	Update(ctx context.Context, userID, categoryID string, input domain.CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, userID, categoryID string) error
}

type applicationStore interface {
	Get(ctx context.Context, applicationID string) (*domain.Application, error)
}

type categoryStore interface {
	Put(ctx context.Context, c *domain.Category) error
	Get(ctx context.Context, categoryID string) (*domain.Category, error)
	ListByApplication(ctx context.Context, applicationID string) ([]domain.Category, error)
	Update(ctx context.Context, categoryID string, updates map[string]interface{}) error
	Delete(ctx context.Context, categoryID string) error
}

type domainStore interface {
	ListByCategory(ctx context.Context, categoryID string) ([]domain.Domain, error)
	Delete(ctx context.Context, domainID string) error
}

type checkStore interface {
	DeleteByDomain(ctx context.Context, domainID string) error
}

type ServiceDeps struct {
	ApplicationRepo applicationStore
	CategoryRepo    categoryStore
	DomainRepo      domainStore
	CheckRepo       checkStore
}

type service struct {
	appRepo      applicationStore
	categoryRepo categoryStore
	domainRepo   domainStore
	checkRepo    checkStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		appRepo:      deps.ApplicationRepo,
		categoryRepo: deps.CategoryRepo,
		domainRepo:   deps.DomainRepo,
		checkRepo:    deps.CheckRepo,
	}
}

func (s *service) ownApplication(ctx context.Context, userID, applicationID string) error {
	a, err := s.appRepo.Get(ctx, applicationID)
	if err != nil {
		return err
	}
	if a.UserID != userID {
		return fmt.Errorf("application belongs to another user: %w", domain.ErrForbidden)
	}
	return nil
}

func (s *service) Create(ctx context.Context, userID, applicationID string, input domain.CategoryInput) (*domain.Category, error) {
	if err := s.ownApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &domain.Category{
		CategoryID:    id.New(),
		ApplicationID: applicationID,
		UserID:        userID,
		Name:          strings.TrimSpace(input.Name),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.categoryRepo.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) ListByApplication(ctx context.Context, userID, applicationID string) ([]domain.Category, error) {
	if err := s.ownApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	return s.categoryRepo.ListByApplication(ctx, applicationID)
}

func (s *service) Get(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	c, err := s.categoryRepo.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, fmt.Errorf("category belongs to another user: %w", domain.ErrForbidden)
	}
	return c, nil
}

func (s *service) Update(ctx context.Context, userID, categoryID string, input domain.CategoryInput) (*domain.Category, error) {
	if _, err := s.Get(ctx, userID, categoryID); err != nil {
		return nil, err
	}
	if err := s.categoryRepo.Update(ctx, categoryID, map[string]interface{}{fieldName: strings.TrimSpace(input.Name)}); err != nil {
		return nil, err
	}
	return s.categoryRepo.Get(ctx, categoryID)
}

// Delete removes the category together with its domains and their checks.
func (s *service) Delete(ctx context.Context, userID, categoryID string) error {
	if _, err := s.Get(ctx, userID, categoryID); err != nil {
		return err
	}
	domains, err := s.domainRepo.ListByCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	for _, d := range domains {
		if err := s.checkRepo.DeleteByDomain(ctx, d.DomainID); err != nil {
			return err
		}
		if err := s.domainRepo.Delete(ctx, d.DomainID); err != nil {
			return err
		}
	}
	return s.categoryRepo.Delete(ctx, categoryID)
}
