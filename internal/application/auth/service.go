package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/infrastructure/mail"
	pkgtoken "github.com/valid-names/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldEmailVerified   = "email_verified"
	fieldEmailVerifiedAt = "email_verified_at"
	fieldPasswordHash    = "password_hash"
)

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ConfirmTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// Service runs the email verification and password reset flows.
type Service interface {
	RequestEmailVerification(ctx context.Context, userID, ip string) (*mail.SendResult, error)
	ConfirmEmailVerification(ctx context.Context, token string) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, email, ip string) error
	ValidatePasswordResetToken(ctx context.Context, token string) (*domain.ValidatedToken, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type rateLimiter interface {
	CheckEmailRateLimit(ctx context.Context, email string, purpose domain.RateLimitPurpose, ip string) (*domain.RateLimitResult, error)
}

type tokenIssuer interface {
	GenerateEmailVerificationToken(ctx context.Context, userID string) (pkgtoken.Secret, error)
	GeneratePasswordResetToken(ctx context.Context, userID string) (pkgtoken.Secret, error)
	ValidatePasswordResetToken(ctx context.Context, raw string) (*domain.ValidatedToken, error)
	ConsumeEmailVerificationToken(ctx context.Context, raw string) (*domain.ValidatedToken, error)
	ConsumePasswordResetToken(ctx context.Context, raw string) (*domain.ValidatedToken, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionStore interface {
	SoftDeleteByUser(ctx context.Context, userID string) error
}

type mailer interface {
	Send(ctx context.Context, t mail.Template, recipient string, vars map[string]any) (*mail.SendResult, error)
}

type ServiceDeps struct {
	Limiter     rateLimiter
	Tokens      tokenIssuer
	UserRepo    userStore
	SessionRepo sessionStore
	Mailer      mailer
	BaseURL     string        // prefix for links in emails
	TokenTTL    time.Duration // only used to tell the recipient when the link dies
	Now         func() time.Time
}

type service struct {
	limiter     rateLimiter
	tokens      tokenIssuer
	userRepo    userStore
	sessionRepo sessionStore
	mailer      mailer
	baseURL     string
	tokenTTL    time.Duration
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		limiter:     deps.Limiter,
		tokens:      deps.Tokens,
		userRepo:    deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		mailer:      deps.Mailer,
		baseURL:     deps.BaseURL,
		tokenTTL:    deps.TokenTTL,
		now:         now,
	}
}

// gate charges one attempt to email and turns a denial into a RateLimitError.
func (s *service) gate(ctx context.Context, email string, purpose domain.RateLimitPurpose, ip string) error {
	res, err := s.limiter.CheckEmailRateLimit(ctx, email, purpose, ip)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return &domain.RateLimitError{Purpose: purpose, ResetTime: res.ResetTime}
	}
	return nil
}

func (s *service) link(path string, secret pkgtoken.Secret) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(string(secret))
}

func (s *service) RequestEmailVerification(ctx context.Context, userID, ip string) (*mail.SendResult, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.EmailVerified {
		return nil, fmt.Errorf("email already verified: %w", domain.ErrConflict)
	}
	if err := s.gate(ctx, u.Email, domain.PurposeVerification, ip); err != nil {
		return nil, err
	}
	secret, err := s.tokens.GenerateEmailVerificationToken(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	return s.mailer.Send(ctx, mail.TemplateVerification, u.Email, map[string]any{
		"Name":      u.FirstName,
		"Link":      s.link("/verify-email", secret),
		"ExpiresAt": s.expiresAt(),
	})
}

func (s *service) ConfirmEmailVerification(ctx context.Context, token string) (*domain.User, error) {
	v, err := s.tokens.ConsumeEmailVerificationToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.userRepo.Update(ctx, v.UserID, map[string]interface{}{
		fieldEmailVerified:   true,
		fieldEmailVerifiedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("mark email verified: %w", err)
	}
	u := v.User
	u.EmailVerified = true
	u.EmailVerifiedAt = &now
	return u, nil
}

// RequestPasswordReset answers the same way whether or not the address
// belongs to an account. Only the limiter can make it fail visibly.
func (s *service) RequestPasswordReset(ctx context.Context, email, ip string) error {
	if err := s.gate(ctx, email, domain.PurposePasswordReset, ip); err != nil {
		return err
	}
	u, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("password reset for unknown email", "ip", ip)
			return nil
		}
		return err
	}
	if !u.IsEnabled() || u.DeletedAt != nil {
		slog.Info("password reset for disabled account", "user_id", u.UserID)
		return nil
	}
	secret, err := s.tokens.GeneratePasswordResetToken(ctx, u.UserID)
	if err != nil {
		return err
	}
	_, err = s.mailer.Send(ctx, mail.TemplatePasswordReset, u.Email, map[string]any{
		"Name":      u.FirstName,
		"Link":      s.link("/reset-password", secret),
		"ExpiresAt": s.expiresAt(),
	})
	return err
}

func (s *service) ValidatePasswordResetToken(ctx context.Context, token string) (*domain.ValidatedToken, error) {
	return s.tokens.ValidatePasswordResetToken(ctx, token)
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	v, err := s.tokens.ConsumePasswordResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.userRepo.Update(ctx, v.UserID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}
	if err := s.sessionRepo.SoftDeleteByUser(ctx, v.UserID); err != nil {
		slog.Warn("failed to revoke sessions after password reset", "user_id", v.UserID, "err", err)
		return err
	}
	return nil
}

func (s *service) expiresAt() string {
	return s.now().UTC().Add(s.tokenTTL).Format("2006-01-02 15:04 MST")
}
