package domain

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitPurpose names the flow an email attempt counts against.
type RateLimitPurpose string

const (
	PurposeVerification  RateLimitPurpose = "verification"
	PurposePasswordReset RateLimitPurpose = "passwordReset"
)

func (p RateLimitPurpose) Valid() bool {
	return p == PurposeVerification || p == PurposePasswordReset
}

// RateLimitRecord is one counted attempt. Records are never updated.
type RateLimitRecord struct {
	Email     string           `json:"email" dynamodbav:"email"`
	Purpose   RateLimitPurpose `json:"type" dynamodbav:"type"`
	IPAddress string           `json:"ip_address,omitempty" dynamodbav:"ip_address,omitempty"`
	CreatedAt time.Time        `json:"created_at" dynamodbav:"created_at"`
}

// RateLimitAttempt is what a store needs to count and, if room remains,
// insert Record as a single atomic step.
type RateLimitAttempt struct {
	Record      RateLimitRecord
	WindowStart time.Time // records with CreatedAt >= WindowStart count
	MaxAttempts int
	Retention   time.Duration
}

// RateLimitResult is the limiter's answer. A denial is data, not an error.
type RateLimitResult struct {
	Allowed           bool      `json:"allowed"`
	RemainingAttempts int       `json:"remaining_attempts"`
	ResetTime         time.Time `json:"reset_time"`
}

// RateLimitError lets flows surface a denial through an error return.
type RateLimitError struct {
	Purpose   RateLimitPurpose
	ResetTime time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many %s requests, retry after %s", e.Purpose, e.ResetTime.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// NormalizeEmail is the canonical form used as a rate-limit key and for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
