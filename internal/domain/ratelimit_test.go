package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitPurpose_Valid(t *testing.T) {
	assert.True(t, PurposeVerification.Valid())
	assert.True(t, PurposePasswordReset.Valid())
	assert.False(t, RateLimitPurpose("login").Valid())
	assert.False(t, RateLimitPurpose("").Valid())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.com "))
}

func TestRateLimitError_IsRateLimited(t *testing.T) {
	reset := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var err error = &RateLimitError{Purpose: PurposePasswordReset, ResetTime: reset}

	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Contains(t, err.Error(), "2026-01-01T12:00:00Z")

	var rlErr *RateLimitError
	assert.True(t, errors.As(err, &rlErr))
	assert.Equal(t, reset, rlErr.ResetTime)
}
