package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valid-names/internal/domain"
)

const uniqueViolation = "23505"

type TokenStore struct {
	db *pgxpool.Pool
}

func NewTokenStore(db *pgxpool.Pool) *TokenStore {
	return &TokenStore{db: db}
}

// Issue replaces any outstanding token of the same kind for the user. Issuers
// for the same (user, kind) serialize on a transaction-scoped advisory lock.
func (s *TokenStore) Issue(ctx context.Context, t *domain.EmailToken) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres token: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := "token#" + string(t.Kind) + "#" + t.UserID
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("postgres token: lock: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM email_tokens WHERE user_id = $1 AND kind = $2`,
		t.UserID, string(t.Kind)); err != nil {
		return fmt.Errorf("postgres token: supersede: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO email_tokens (token_hash, kind, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.TokenHash, string(t.Kind), t.UserID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("email token already exists: %w", domain.ErrConflict)
		}
		return fmt.Errorf("postgres token: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres token: commit: %w", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, tokenHash string) (*domain.EmailToken, error) {
	row := s.db.QueryRow(ctx, `
		SELECT token_hash, kind, user_id, expires_at, created_at
		FROM email_tokens WHERE token_hash = $1
	`, tokenHash)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("email token not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres token: get: %w", err)
	}
	return t, nil
}

// Consume deletes the row only if kind matches and it has not expired, so
// concurrent callers see at most one returned row.
func (s *TokenStore) Consume(ctx context.Context, kind domain.TokenKind, tokenHash string, now time.Time) (*domain.EmailToken, error) {
	row := s.db.QueryRow(ctx, `
		DELETE FROM email_tokens
		WHERE token_hash = $1 AND kind = $2 AND expires_at >= $3
		RETURNING token_hash, kind, user_id, expires_at, created_at
	`, tokenHash, string(kind), now)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("postgres token: consume: %w", err)
	}
	return t, nil
}

func (s *TokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM email_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres token: delete expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanToken(row pgx.Row) (*domain.EmailToken, error) {
	var t domain.EmailToken
	var kind string
	if err := row.Scan(&t.TokenHash, &kind, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Kind = domain.TokenKind(kind)
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
