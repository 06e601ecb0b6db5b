package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/pkg/id"
)

const contentType = "text/csv"

// Report points at an exported CSV in object storage.
type Report struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	// Export writes the application's current checks as CSV and returns a presigned link to it.
	Export(ctx context.Context, userID, applicationID string) (*Report, error)
}

type applicationStore interface {
	Get(ctx context.Context, applicationID string) (*domain.Application, error)
}

type checkStore interface {
	ListByApplication(ctx context.Context, applicationID string) ([]domain.Check, error)
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ServiceDeps struct {
	ApplicationRepo applicationStore
	CheckRepo       checkStore
	Objects         objectStore
	URLExpiry       time.Duration
	Now             func() time.Time
}

type service struct {
	appRepo   applicationStore
	checkRepo checkStore
	objects   objectStore
	urlExpiry time.Duration
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	expiry := deps.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &service{
		appRepo:   deps.ApplicationRepo,
		checkRepo: deps.CheckRepo,
		objects:   deps.Objects,
		urlExpiry: expiry,
		now:       now,
	}
}

func (s *service) Export(ctx context.Context, userID, applicationID string) (*Report, error) {
	a, err := s.appRepo.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("application belongs to another user: %w", domain.ErrForbidden)
	}
	checks, err := s.checkRepo.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	body, err := encode(checks)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("reports/%s/%s/%s.csv", userID, applicationID, id.New())
	if _, err := s.objects.Upload(ctx, key, bytes.NewReader(body), contentType); err != nil {
		return nil, err
	}
	url, err := s.objects.PresignedURL(ctx, key, s.urlExpiry)
	if err != nil {
		return nil, err
	}
	return &Report{
		Key:       key,
		URL:       url,
		Rows:      len(checks),
		ExpiresAt: s.now().UTC().Add(s.urlExpiry),
	}, nil
}

var header = []string{"fqdn", "tld", "available", "registrar", "trust_score", "domain_age_days", "status", "checked_at"}

func encode(checks []domain.Check) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, c := range checks {
		if err := w.Write([]string{
			c.FQDN,
			c.TLD,
			strconv.FormatBool(c.Available),
			c.Registrar,
			optInt(c.TrustScore),
			optInt(c.DomainAgeDays),
			c.Status,
			c.CheckedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
