// Package csrf issues and validates short-lived anti-forgery tokens for
// browser-form style endpoints.
package csrf

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an issued token stays valid
const DefaultTTL = time.Hour

// Store holds issued tokens until they expire. Validation is deliberately
// non-consuming: a token stays usable until its natural expiry. Single-use
// rotation is a product decision, not applied here.
type Store struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates a token store with the given TTL (DefaultTTL when zero)
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("component", "csrf"),
	}
}

// SetNow replaces the store's clock. Test hook.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Issue mints a fresh token. userID is recorded for logging only; tokens
// are not bound to a session.
func (s *Store) Issue(userID string) string {
	token := uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = s.now().Add(s.ttl)
	s.mu.Unlock()

	s.logger.Debug("csrf token issued", "user", userID)
	return token
}

// Validate reports whether a token is known and unexpired. Expired tokens
// are removed lazily.
func (s *Store) Validate(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[token]
	if !ok {
		return false
	}
	if !s.now().Before(expiry) {
		delete(s.tokens, token)
		return false
	}
	return true
}

// Len returns the number of live tokens
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Sweep removes expired tokens and returns how many were dropped
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, expiry := range s.tokens {
		if !now.Before(expiry) {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed
}
