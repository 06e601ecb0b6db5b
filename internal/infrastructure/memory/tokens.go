package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valid-names/internal/domain"
)

// TokenStore keeps email tokens in process, keyed by token hash.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]domain.EmailToken
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]domain.EmailToken)}
}

// Issue stores t and drops any other token of the same kind for the same user.
func (s *TokenStore) Issue(_ context.Context, t *domain.EmailToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[t.TokenHash]; ok {
		return fmt.Errorf("token already exists: %w", domain.ErrConflict)
	}
	for hash, existing := range s.tokens {
		if existing.UserID == t.UserID && existing.Kind == t.Kind {
			delete(s.tokens, hash)
		}
	}
	s.tokens[t.TokenHash] = *t
	return nil
}

func (s *TokenStore) Get(_ context.Context, tokenHash string) (*domain.EmailToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("email token not found: %w", domain.ErrNotFound)
	}
	return &t, nil
}

// Consume removes and returns the token only if it has the expected kind and
// has not expired at now.
func (s *TokenStore) Consume(_ context.Context, kind domain.TokenKind, tokenHash string, now time.Time) (*domain.EmailToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok || t.Kind != kind || t.Expired(now) {
		return nil, domain.ErrInvalidToken
	}
	delete(s.tokens, tokenHash)
	return &t, nil
}

func (s *TokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for hash, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}
