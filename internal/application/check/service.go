package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/infrastructure/mail"
	"github.com/valid-names/internal/pkg/id"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

type Service interface {
	// RunChecks looks the domain up in every enabled TLD and stores the results.
	RunChecks(ctx context.Context, userID, domainID string) ([]domain.Check, error)
	ListChecks(ctx context.Context, userID, domainID string) ([]domain.Check, error)
	// RefreshStale re-runs up to limit checks older than olderThan and returns how many ran.
	RefreshStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type domainStore interface {
	Get(ctx context.Context, domainID string) (*domain.Domain, error)
}

type tldStore interface {
	ListEnabled(ctx context.Context) ([]domain.TLD, error)
}

type checkStore interface {
	Put(ctx context.Context, c *domain.Check) error
	Get(ctx context.Context, domainID, tld string) (*domain.Check, error)
	ListByDomain(ctx context.Context, domainID string) ([]domain.Check, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Check, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type lookuper interface {
	Lookup(ctx context.Context, fqdn string) (*domain.LookupResult, error)
}

type mailer interface {
	Send(ctx context.Context, t mail.Template, recipient string, vars map[string]any) (*mail.SendResult, error)
}

type ServiceDeps struct {
	DomainRepo       domainStore
	TLDRepo          tldStore
	CheckRepo        checkStore
	NotificationRepo notificationStore
	UserRepo         userStore
	Lookup           lookuper
	Mailer           mailer // optional; nil disables availability mails
	Concurrency      int
	Now              func() time.Time
}

type service struct {
	domainRepo       domainStore
	tldRepo          tldStore
	checkRepo        checkStore
	notificationRepo notificationStore
	userRepo         userStore
	lookup           lookuper
	mailer           mailer
	concurrency      int
	now              func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &service{
		domainRepo:       deps.DomainRepo,
		tldRepo:          deps.TLDRepo,
		checkRepo:        deps.CheckRepo,
		notificationRepo: deps.NotificationRepo,
		userRepo:         deps.UserRepo,
		lookup:           deps.Lookup,
		mailer:           deps.Mailer,
		concurrency:      concurrency,
		now:              now,
	}
}

func (s *service) ownDomain(ctx context.Context, userID, domainID string) (*domain.Domain, error) {
	d, err := s.domainRepo.Get(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, fmt.Errorf("domain belongs to another user: %w", domain.ErrForbidden)
	}
	return d, nil
}

func (s *service) RunChecks(ctx context.Context, userID, domainID string) ([]domain.Check, error) {
	d, err := s.ownDomain(ctx, userID, domainID)
	if err != nil {
		return nil, err
	}
	tlds, err := s.tldRepo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]domain.Check, len(tlds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, t := range tlds {
		g.Go(func() error {
			c, err := s.runOne(gctx, d.DomainID, d.ApplicationID, d.UserID, d.Name, t.Name)
			if err != nil {
				return err
			}
			results[i] = *c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *service) ListChecks(ctx context.Context, userID, domainID string) ([]domain.Check, error) {
	if _, err := s.ownDomain(ctx, userID, domainID); err != nil {
		return nil, err
	}
	return s.checkRepo.ListByDomain(ctx, domainID)
}

func (s *service) RefreshStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.checkRepo.ListStale(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, c := range stale {
		g.Go(func() error {
			d, err := s.domainRepo.Get(gctx, c.DomainID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			_, err = s.runOne(gctx, d.DomainID, d.ApplicationID, d.UserID, d.Name, c.TLD)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// runOne performs a single lookup and stores the result. Lookup failures are
// recorded on the check; only persistence failures are returned.
func (s *service) runOne(ctx context.Context, domainID, applicationID, userID, label, tld string) (*domain.Check, error) {
	fqdn := domain.FQDN(label, tld)
	prev, err := s.checkRepo.Get(ctx, domainID, tld)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	c := &domain.Check{
		DomainID:      domainID,
		TLD:           tld,
		FQDN:          fqdn,
		UserID:        userID,
		ApplicationID: applicationID,
		Status:        domain.CheckStatusOK,
		CheckedAt:     now,
	}
	res, err := s.lookup.Lookup(ctx, fqdn)
	if err != nil {
		slog.Warn("rdap lookup failed", "fqdn", fqdn, "err", err)
		c.Status = domain.CheckStatusError
		c.Error = err.Error()
		if prev != nil {
			c.Available = prev.Available
		}
	} else {
		c.Available = res.Available
		c.Registrar = res.Registrar
		c.RegisteredAt = res.RegisteredAt
		if res.RegisteredAt != nil {
			days := int(now.Sub(*res.RegisteredAt).Hours() / 24)
			c.DomainAgeDays = &days
		}
		c.TrustScore = TrustScore(res, now)
	}
	if err := s.checkRepo.Put(ctx, c); err != nil {
		return nil, err
	}

	if c.Status == domain.CheckStatusOK && c.Available && prev != nil && !prev.Available {
		if err := s.notify(ctx, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *service) notify(ctx context.Context, c *domain.Check) error {
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         c.UserID,
		DomainID:       c.DomainID,
		FQDN:           c.FQDN,
		Message:        c.FQDN + " is now available",
		CreatedAt:      c.CheckedAt,
		UpdatedAt:      c.CheckedAt,
	}
	if err := s.notificationRepo.Put(ctx, n); err != nil {
		return err
	}
	if s.mailer == nil {
		return nil
	}
	u, err := s.userRepo.Get(ctx, c.UserID)
	if err != nil {
		slog.Warn("availability mail skipped", "user_id", c.UserID, "err", err)
		return nil
	}
	if _, err := s.mailer.Send(ctx, mail.TemplateDomainAvailable, u.Email, map[string]any{
		"Name":      u.FirstName,
		"FQDN":      c.FQDN,
		"CheckedAt": c.CheckedAt.Format(time.RFC1123),
	}); err != nil {
		slog.Warn("availability mail failed", "user_id", c.UserID, "fqdn", c.FQDN, "err", err)
	}
	return nil
}

// TrustScore rates how established a registered name is, from 0 to 100.
// Available names have no score.
func TrustScore(res *domain.LookupResult, now time.Time) *int {
	if res.Available {
		return nil
	}
	score := 40
	if res.RegisteredAt != nil {
		years := int(now.Sub(*res.RegisteredAt).Hours() / 24 / 365)
		score += min(5*years, 30)
	}
	if res.Registrar != "" {
		score += 15
	}
	if res.DNSSEC {
		score += 15
	}
	score = min(score, 100)
	return &score
}
