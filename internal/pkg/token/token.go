package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Size is the number of random bytes behind every token; hex doubles it.
const Size = 32

// Secret is a plaintext token. It is only ever handed to the caller or put
// in an email and never shows up in logs.
type Secret string

// LogValue implements slog.LogValuer.
func (Secret) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

// New generates a cryptographically random 64-character hex token.
func New() (Secret, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return Secret(hex.EncodeToString(b)), nil
}

// NewRefreshToken generates an opaque session refresh token.
func NewRefreshToken() (string, error) {
	s, err := New()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return string(s), nil
}

// Hash returns the hex SHA-256 digest of a presented token. Stores key email
// tokens by this digest.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
