package memory

import (
	"context"
	"sync"
	"time"

	"github.com/valid-names/internal/domain"
)

// AttemptStore keeps rate-limit records in process. It is meant for local
// development and tests; a multi-instance deployment needs a shared store.
type AttemptStore struct {
	mu      sync.Mutex
	records map[string][]domain.RateLimitRecord
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{records: make(map[string][]domain.RateLimitRecord)}
}

func attemptKey(email string, purpose domain.RateLimitPurpose) string {
	return string(purpose) + ":" + email
}

// Acquire counts the records inside the window and appends a new one when
// there is room, all under one lock.
func (s *AttemptStore) Acquire(_ context.Context, a domain.RateLimitAttempt) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attemptKey(a.Record.Email, a.Record.Purpose)
	count := 0
	for _, r := range s.records[key] {
		if !r.CreatedAt.Before(a.WindowStart) {
			count++
		}
	}
	if count >= a.MaxAttempts {
		return count, false, nil
	}
	s.records[key] = append(s.records[key], a.Record)
	return count, true, nil
}

// DeleteBefore drops every record created before cutoff.
func (s *AttemptStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, recs := range s.records {
		kept := recs[:0]
		for _, r := range recs {
			if r.CreatedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(s.records, key)
		} else {
			s.records[key] = kept
		}
	}
	return deleted, nil
}

// Len returns how many records are held for an email and purpose.
func (s *AttemptStore) Len(email string, purpose domain.RateLimitPurpose) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[attemptKey(email, purpose)])
}
