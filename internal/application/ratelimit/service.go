package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valid-names/internal/config"
	"github.com/valid-names/internal/domain"
)

// Service gates outbound security emails per address and purpose.
type Service interface {
	CheckEmailRateLimit(ctx context.Context, email string, purpose domain.RateLimitPurpose, ip string) (*domain.RateLimitResult, error)
	CleanupExpiredRateLimits(ctx context.Context) (int, error)
}

type attemptStore interface {
	// Acquire counts records in the window and inserts the attempt's record
	// only when the count is below MaxAttempts. It returns the count seen
	// before the insert.
	Acquire(ctx context.Context, a domain.RateLimitAttempt) (count int, allowed bool, err error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type ServiceDeps struct {
	Store     attemptStore
	Policies  config.RateLimits
	Retention time.Duration
	Now       func() time.Time // defaults to time.Now
}

type service struct {
	store     attemptStore
	policies  config.RateLimits
	retention time.Duration
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:     deps.Store,
		policies:  deps.Policies,
		retention: deps.Retention,
		now:       now,
	}
}

func (s *service) policy(purpose domain.RateLimitPurpose) (config.RateLimitPolicy, error) {
	switch purpose {
	case domain.PurposeVerification:
		return s.policies.Verification, nil
	case domain.PurposePasswordReset:
		return s.policies.PasswordReset, nil
	default:
		return config.RateLimitPolicy{}, fmt.Errorf("unknown rate limit purpose %q: %w", purpose, domain.ErrBadRequest)
	}
}

func (s *service) CheckEmailRateLimit(ctx context.Context, email string, purpose domain.RateLimitPurpose, ip string) (*domain.RateLimitResult, error) {
	p, err := s.policy(purpose)
	if err != nil {
		return nil, err
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email required: %w", domain.ErrBadRequest)
	}

	now := s.now().UTC()
	count, allowed, err := s.store.Acquire(ctx, domain.RateLimitAttempt{
		Record: domain.RateLimitRecord{
			Email:     email,
			Purpose:   purpose,
			IPAddress: ip,
			CreatedAt: now,
		},
		WindowStart: now.Add(-p.Window),
		MaxAttempts: p.MaxAttempts,
		Retention:   s.retention,
	})
	if err != nil {
		return nil, fmt.Errorf("acquire rate limit slot: %w", err)
	}

	remaining := p.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	if !allowed {
		slog.Info("email rate limit reached", "purpose", purpose, "count", count, "ip", ip)
	}
	return &domain.RateLimitResult{
		Allowed:           allowed,
		RemainingAttempts: remaining,
		ResetTime:         now.Add(p.Window),
	}, nil
}

func (s *service) CleanupExpiredRateLimits(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("delete rate limit records: %w", err)
	}
	return n, nil
}
