package domain

import "time"

// TokenKind separates verification tokens from reset tokens; a token of one
// kind never validates as the other.
type TokenKind string

const (
	TokenEmailVerification TokenKind = "verification"
	TokenPasswordReset     TokenKind = "passwordReset"
)

// EmailToken is the persisted form of a token sent by email. Stores only see
// the SHA-256 digest; the plaintext lives in the email.
type EmailToken struct {
	TokenHash string    `json:"-" dynamodbav:"token_hash"`
	Kind      TokenKind `json:"kind" dynamodbav:"kind"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"` // TTL attribute
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Expired uses a strict comparison: a token is still usable at exactly ExpiresAt.
func (t *EmailToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// ValidatedToken is returned when a presented token is usable.
type ValidatedToken struct {
	UserID    string    `json:"user_id"`
	User      *User     `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}
