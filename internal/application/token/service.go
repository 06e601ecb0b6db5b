package token

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valid-names/internal/domain"
	pkgtoken "github.com/valid-names/internal/pkg/token"
)

// Service issues and checks the single-use tokens sent in verification and
// password-reset emails.
type Service interface {
	GenerateEmailVerificationToken(ctx context.Context, userID string) (pkgtoken.Secret, error)
	GeneratePasswordResetToken(ctx context.Context, userID string) (pkgtoken.Secret, error)

	// Validate* are read-only; the token stays usable.
	ValidateEmailVerificationToken(ctx context.Context, raw string) (*domain.ValidatedToken, error)
	ValidatePasswordResetToken(ctx context.Context, raw string) (*domain.ValidatedToken, error)

	// Consume* validate and delete in one store operation.
	ConsumeEmailVerificationToken(ctx context.Context, raw string) (*domain.ValidatedToken, error)
	ConsumePasswordResetToken(ctx context.Context, raw string) (*domain.ValidatedToken, error)

	CleanupExpiredTokens(ctx context.Context) (int, error)
}

type tokenStore interface {
	// Issue persists t and removes other tokens of the same kind for the user.
	Issue(ctx context.Context, t *domain.EmailToken) error
	Get(ctx context.Context, tokenHash string) (*domain.EmailToken, error)
	Consume(ctx context.Context, kind domain.TokenKind, tokenHash string, now time.Time) (*domain.EmailToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type ServiceDeps struct {
	TokenRepo tokenStore
	UserRepo  userStore
	TTL       time.Duration
	Now       func() time.Time
}

type service struct {
	repo     tokenStore
	userRepo userStore
	ttl      time.Duration
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{
		repo:     deps.TokenRepo,
		userRepo: deps.UserRepo,
		ttl:      ttl,
		now:      now,
	}
}

func (s *service) GenerateEmailVerificationToken(ctx context.Context, userID string) (pkgtoken.Secret, error) {
	return s.generate(ctx, domain.TokenEmailVerification, userID)
}

func (s *service) GeneratePasswordResetToken(ctx context.Context, userID string) (pkgtoken.Secret, error) {
	return s.generate(ctx, domain.TokenPasswordReset, userID)
}

func (s *service) generate(ctx context.Context, kind domain.TokenKind, userID string) (pkgtoken.Secret, error) {
	if userID == "" {
		return "", fmt.Errorf("user id required: %w", domain.ErrBadRequest)
	}
	secret, err := pkgtoken.New()
	if err != nil {
		return "", err
	}
	// Whole seconds, so every store sees the same expiry.
	now := s.now().UTC().Truncate(time.Second)
	t := &domain.EmailToken{
		TokenHash: pkgtoken.Hash(string(secret)),
		Kind:      kind,
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Issue(ctx, t); err != nil {
		return "", fmt.Errorf("store %s token: %w", kind, err)
	}
	slog.Debug("email token issued", "kind", kind, "user_id", userID, "token", secret)
	return secret, nil
}

func (s *service) ValidateEmailVerificationToken(ctx context.Context, raw string) (*domain.ValidatedToken, error) {
	return s.validate(ctx, domain.TokenEmailVerification, raw)
}

func (s *service) ValidatePasswordResetToken(ctx context.Context, raw string) (*domain.ValidatedToken, error) {
	return s.validate(ctx, domain.TokenPasswordReset, raw)
}

func (s *service) validate(ctx context.Context, kind domain.TokenKind, raw string) (*domain.ValidatedToken, error) {
	if !wellFormed(raw) {
		return nil, domain.ErrInvalidToken
	}
	t, err := s.repo.Get(ctx, pkgtoken.Hash(raw))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("load %s token: %w", kind, err)
	}
	if t.Kind != kind || t.Expired(s.now()) {
		return nil, domain.ErrInvalidToken
	}
	return s.resolve(ctx, t)
}

func (s *service) ConsumeEmailVerificationToken(ctx context.Context, raw string) (*domain.ValidatedToken, error) {
	return s.consume(ctx, domain.TokenEmailVerification, raw)
}

func (s *service) ConsumePasswordResetToken(ctx context.Context, raw string) (*domain.ValidatedToken, error) {
	return s.consume(ctx, domain.TokenPasswordReset, raw)
}

func (s *service) consume(ctx context.Context, kind domain.TokenKind, raw string) (*domain.ValidatedToken, error) {
	if !wellFormed(raw) {
		return nil, domain.ErrInvalidToken
	}
	t, err := s.repo.Consume(ctx, kind, pkgtoken.Hash(raw), s.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("consume %s token: %w", kind, err)
	}
	return s.resolve(ctx, t)
}

// resolve loads the token's owner. A token whose user is gone or disabled is
// reported exactly like a missing one.
func (s *service) resolve(ctx context.Context, t *domain.EmailToken) (*domain.ValidatedToken, error) {
	u, err := s.userRepo.Get(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("load token owner: %w", err)
	}
	if !u.IsEnabled() || u.DeletedAt != nil {
		return nil, domain.ErrInvalidToken
	}
	return &domain.ValidatedToken{UserID: u.UserID, User: u, ExpiresAt: t.ExpiresAt}, nil
}

func (s *service) CleanupExpiredTokens(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return n, fmt.Errorf("delete expired tokens: %w", err)
	}
	return n, nil
}

func wellFormed(raw string) bool {
	if len(raw) != 2*pkgtoken.Size {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}
