package tld

import (
	"context"
	"fmt"
	"strings"

	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldName   = "name"
	fieldEnable = "enable"
)

type Service interface {
	List(ctx context.Context) ([]domain.TLD, error)
	ListEnabled(ctx context.Context) ([]domain.TLD, error)
	Get(ctx context.Context, tldID string) (*domain.TLD, error)
	Create(ctx context.Context, input domain.TLDInput) (*domain.TLD, error)
	Update(ctx context.Context, tldID string, input domain.TLDInput) (*domain.TLD, error)
	Delete(ctx context.Context, tldID string) error // hard delete
}

type tldStore interface {
	Scan(ctx context.Context) ([]domain.TLD, error)
	ListEnabled(ctx context.Context) ([]domain.TLD, error)
	Get(ctx context.Context, tldID string) (*domain.TLD, error)
	Put(ctx context.Context, t *domain.TLD) error
	Update(ctx context.Context, tldID string, updates map[string]interface{}) error
	HardDelete(ctx context.Context, tldID string) error
}

type service struct {
	repo tldStore
}

func NewService(repo tldStore) Service {
	return &service{repo: repo}
}

// normalize strips a leading dot and lower-cases: ".COM" becomes "com".
func normalize(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
}

func (s *service) List(ctx context.Context) ([]domain.TLD, error) {
	return s.repo.Scan(ctx)
}

func (s *service) ListEnabled(ctx context.Context) ([]domain.TLD, error) {
	return s.repo.ListEnabled(ctx)
}

func (s *service) Get(ctx context.Context, tldID string) (*domain.TLD, error) {
	return s.repo.Get(ctx, tldID)
}

func (s *service) Create(ctx context.Context, input domain.TLDInput) (*domain.TLD, error) {
	name := normalize(input.Name)
	all, err := s.repo.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.Name == name {
			return nil, fmt.Errorf("tld %q exists: %w", name, domain.ErrConflict)
		}
	}
	t := &domain.TLD{TLDID: id.New(), Name: name, Enable: true}
	if input.Enable != nil {
		t.Enable = *input.Enable
	}
	if err := s.repo.Put(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) Update(ctx context.Context, tldID string, input domain.TLDInput) (*domain.TLD, error) {
	updates := map[string]interface{}{fieldName: normalize(input.Name)}
	if input.Enable != nil {
		updates[fieldEnable] = *input.Enable
	}
	if err := s.repo.Update(ctx, tldID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, tldID)
}

func (s *service) Delete(ctx context.Context, tldID string) error {
	return s.repo.HardDelete(ctx, tldID)
}
