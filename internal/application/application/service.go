package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldName        = "name"
	fieldDescription = "description"
)

type Service interface {
	Create(ctx context.Context, userID string, input domain.ApplicationInput) (*domain.Application, error)
	List(ctx context.Context, userID string) ([]domain.Application, error)
	Get(ctx context.Context, userID, applicationID string) (*domain.Application, error)
	Update(ctx context.Context, userID, applicationID string, input domain.ApplicationInput) (*domain.Application, error)
	// Delete removes the application with its categories, domains and checks.
	Delete(ctx context.Context, userID, applicationID string) error
}

type applicationStore interface {
	Put(ctx context.Context, a *domain.Application) error
	Get(ctx context.Context, applicationID string) (*domain.Application, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Application, error)
	Update(ctx context.Context, applicationID string, updates map[string]interface{}) error
	Delete(ctx context.Context, applicationID string) error
}

type categoryStore interface {
	ListByApplication(ctx context.Context, applicationID string) ([]domain.Category, error)
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

func (s *service) Create(ctx context.Context, userID string, input domain.ApplicationInput) (*domain.Application, error) {
	now := time.Now().UTC()
	a := &domain.Application{
		ApplicationID: id.New(),
		UserID:        userID,
		Name:          strings.TrimSpace(input.Name),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if input.Description != nil {
		a.Description = *input.Description
	}
	if err := s.appRepo.Put(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Application, error) {
	return s.appRepo.ListByUser(ctx, userID)
}

func (s *service) Get(ctx context.Context, userID, applicationID string) (*domain.Application, error) {
	a, err := s.appRepo.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("application belongs to another user: %w", domain.ErrForbidden)
	}
	return a, nil
}

func (s *service) Update(ctx context.Context, userID, applicationID string, input domain.ApplicationInput) (*domain.Application, error) {
	if _, err := s.Get(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{fieldName: strings.TrimSpace(input.Name)}
	if input.Description != nil {
		updates[fieldDescription] = *input.Description
	}
	if err := s.appRepo.Update(ctx, applicationID, updates); err != nil {
		return nil, err
	}
	return s.appRepo.Get(ctx, applicationID)
}

func (s *service) Delete(ctx context.Context, userID, applicationID string) error {
	if _, err := s.Get(ctx, userID, applicationID); err != nil {
		return err
	}
	categories, err := s.categoryRepo.ListByApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	for _, c := range categories {
		domains, err := s.domainRepo.ListByCategory(ctx, c.CategoryID)
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
		if err := s.categoryRepo.Delete(ctx, c.CategoryID); err != nil {
			return err
		}
	}
	return s.appRepo.Delete(ctx, applicationID)
}
