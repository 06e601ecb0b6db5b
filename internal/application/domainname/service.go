package domainname

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/pkg/id"
	"github.com/valid-names/internal/pkg/validate"
)

type Service interface {
	Create(ctx context.Context, userID, categoryID string, input domain.DomainInput) (*domain.Domain, error)
	ListByCategory(ctx context.Context, userID, categoryID string) ([]domain.Domain, error)
	Get(ctx context.Context, userID, domainID string) (*domain.Domain, error)
	Delete(ctx context.Context, userID, domainID string) error
}

type categoryStore interface {
	Get(ctx context.Context, categoryID string) (*domain.Category, error)
}

type domainStore interface {
	Put(ctx context.Context, d *domain.Domain) error
	Get(ctx context.Context, domainID string) (*domain.Domain, error)
	ListByCategory(ctx context.Context, categoryID string) ([]domain.Domain, error)
	Delete(ctx context.Context, domainID string) error
}

type checkStore interface {
	DeleteByDomain(ctx context.Context, domainID string) error
}

type ServiceDeps struct {
	CategoryRepo categoryStore
	DomainRepo   domainStore
	CheckRepo    checkStore
}

type service struct {
	categoryRepo categoryStore
	domainRepo   domainStore
	checkRepo    checkStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		categoryRepo: deps.CategoryRepo,
		domainRepo:   deps.DomainRepo,
		checkRepo:    deps.CheckRepo,
	}
}

func (s *service) ownCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	c, err := s.categoryRepo.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, fmt.Errorf("category belongs to another user: %w", domain.ErrForbidden)
	}
	return c, nil
}

// Create stores a lower-cased label under the category. Labels are unique per category.
func (s *service) Create(ctx context.Context, userID, categoryID string, input domain.DomainInput) (*domain.Domain, error) {
	name := strings.ToLower(strings.TrimSpace(input.Name))
	if !validate.DomainLabel(name) {
		return nil, fmt.Errorf("invalid domain label %q: %w", input.Name, domain.ErrBadRequest)
	}
	c, err := s.ownCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	existing, err := s.domainRepo.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	for _, d := range existing {
		if d.Name == name {
			return nil, fmt.Errorf("domain %q already tracked: %w", name, domain.ErrConflict)
		}
	}
	now := time.Now().UTC()
	d := &domain.Domain{
		DomainID:      id.New(),
		CategoryID:    categoryID,
		ApplicationID: c.ApplicationID,
		UserID:        userID,
		Name:          name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.domainRepo.Put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *service) ListByCategory(ctx context.Context, userID, categoryID string) ([]domain.Domain, error) {
	if _, err := s.ownCategory(ctx, userID, categoryID); err != nil {
		return nil, err
	}
	return s.domainRepo.ListByCategory(ctx, categoryID)
}

func (s *service) Get(ctx context.Context, userID, domainID string) (*domain.Domain, error) {
	d, err := s.domainRepo.Get(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, fmt.Errorf("domain belongs to another user: %w", domain.ErrForbidden)
	}
	return d, nil
}

func (s *service) Delete(ctx context.Context, userID, domainID string) error {
	if _, err := s.Get(ctx, userID, domainID); err != nil {
		return err
	}
	if err := s.checkRepo.DeleteByDomain(ctx, domainID); err != nil {
		return err
	}
	return s.domainRepo.Delete(ctx, domainID)
}
