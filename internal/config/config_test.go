package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, StoreDynamo, cfg.AuthStore)
	assert.Equal(t, 5, cfg.RateLimits.Verification.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.RateLimits.Verification.Window)
	assert.Equal(t, 3, cfg.RateLimits.PasswordReset.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.RateLimits.PasswordReset.Window)
	assert.Equal(t, 24*time.Hour, cfg.RateLimitRetention)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "rate_limits", cfg.DynamoTables.RateLimits)
	assert.Equal(t, "email_tokens", cfg.DynamoTables.EmailTokens)
	assert.False(t, cfg.TrustProxyHeaders)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_STORE", "Redis")
	t.Setenv("PASSWORD_RESET_MAX_ATTEMPTS", "10")
	t.Setenv("PASSWORD_RESET_WINDOW", "30m")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("APP_BASE_URL", "https://validnames.dev/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.dev,https://b.dev")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg := Load()

	assert.Equal(t, StoreRedis, cfg.AuthStore)
	assert.Equal(t, 10, cfg.RateLimits.PasswordReset.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.RateLimits.PasswordReset.Window)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "https://validnames.dev", cfg.AppBaseURL)
	assert.Equal(t, []string{"https://a.dev", "https://b.dev"}, cfg.AllowedOrigins)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("VERIFICATION_MAX_ATTEMPTS", "five")
	t.Setenv("VERIFICATION_WINDOW", "an hour")

	cfg := Load()

	assert.Equal(t, 5, cfg.RateLimits.Verification.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.RateLimits.Verification.Window)
}
