package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type rateLimitCleaner interface {
	CleanupExpiredRateLimits(ctx context.Context) (int, error)
}

type tokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int, error)
}

type staleRefresher interface {
	RefreshStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type RunnerDeps struct {
	RateLimits   rateLimitCleaner
	Tokens       tokenCleaner
	Checks       staleRefresher // optional
	RefreshAge   time.Duration
	RefreshBatch int
}

// Runner performs periodic housekeeping: expired rate-limit records, expired
// email tokens and stale availability checks.
type Runner struct {
	deps RunnerDeps
}

func NewRunner(deps RunnerDeps) *Runner {
	return &Runner{deps: deps}
}

// Report holds the counts from one RunOnce.
type Report struct {
	RateLimitsDeleted int
	TokensDeleted     int
	ChecksRefreshed   int
}

// RunOnce runs every step even when an earlier one fails; errors are joined.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	var (
		rep  Report
		errs []error
		err  error
	)
	if rep.RateLimitsDeleted, err = r.deps.RateLimits.CleanupExpiredRateLimits(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cleanup rate limits: %w", err))
	}
	if rep.TokensDeleted, err = r.deps.Tokens.CleanupExpiredTokens(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cleanup tokens: %w", err))
	}
	if r.deps.Checks != nil && r.deps.RefreshBatch > 0 {
		if rep.ChecksRefreshed, err = r.deps.Checks.RefreshStale(ctx, r.deps.RefreshAge, r.deps.RefreshBatch); err != nil {
			errs = append(errs, fmt.Errorf("refresh checks: %w", err))
		}
	}
	slog.Info("maintenance run",
		"rate_limits_deleted", rep.RateLimitsDeleted,
		"tokens_deleted", rep.TokensDeleted,
		"checks_refreshed", rep.ChecksRefreshed,
	)
	return rep, errors.Join(errs...)
}

// Run calls RunOnce every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				slog.Warn("maintenance run failed", "err", err)
			}
		}
	}
}
