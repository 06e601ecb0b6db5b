package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valid-names/internal/domain"
)

// AttemptStore keeps rate-limit records as rows. Count and insert for one
// (email, purpose) run under a transaction-scoped advisory lock.
type AttemptStore struct {
	db *pgxpool.Pool
}

func NewAttemptStore(db *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Acquire(ctx context.Context, a domain.RateLimitAttempt) (int, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("postgres rate limit: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec := a.Record
	lockKey := string(rec.Purpose) + "#" + rec.Email
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return 0, false, fmt.Errorf("postgres rate limit: lock: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM rate_limits
		WHERE email = $1 AND type = $2 AND created_at >= $3
	`, rec.Email, string(rec.Purpose), a.WindowStart).Scan(&count)
	if err != nil {
		return 0, false, fmt.Errorf("postgres rate limit: count: %w", err)
	}
	if count >= a.MaxAttempts {
		return count, false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO rate_limits (email, type, ip_address, created_at)
		VALUES ($1, $2, $3, $4)
	`, rec.Email, string(rec.Purpose), rec.IPAddress, rec.CreatedAt)
	if err != nil {
		return 0, false, fmt.Errorf("postgres rate limit: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("postgres rate limit: commit: %w", err)
	}
	return count, true, nil
}

func (s *AttemptStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM rate_limits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres rate limit: delete: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
