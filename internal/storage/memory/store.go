package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"gatekeeper/internal/storage"
)

// entry represents one token bucket. Tokens are fractional so sub-second
// refill accrues precisely; +Inf marks an exempt key.
type entry struct {
	tokens     float64
	lastRefill time.Time
}

// Store implements LimiterStore using in-memory storage. A single mutex
// guards the map; critical sections are O(1) lookups and float math.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  *storage.LimiterStoreConfig
	now     func() time.Time
}

// NewStore creates a new memory store
func NewStore(config *storage.LimiterStoreConfig) *Store {
	if config == nil {
		config = storage.DefaultConfig()
	}
	return &Store{
		entries: make(map[string]*entry),
		config:  config,
		now:     time.Now,
	}
}

// SetNow replaces the store's clock. Test hook.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Check consumes one token for key under quota q
func (s *Store) Check(ctx context.Context, key string, q storage.Quota) (storage.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	e, exists := s.entries[key]
	if !exists {
		if s.config.MaxEntries > 0 && len(s.entries) >= s.config.MaxEntries {
			s.evictOldestLocked()
		}
		e = &entry{
			tokens:     float64(q.Burst),
			lastRefill: now,
		}
		s.entries[key] = e
	}

	if math.IsInf(e.tokens, 1) {
		// Exempt key: always allowed, never consumed
		e.lastRefill = now
		return storage.Result{Allowed: true, Remaining: q.Burst, ResetAt: now}, nil
	}

	// Lazy refill based on elapsed time
	perToken := q.Period.Seconds() / float64(q.Rate)
	elapsed := now.Sub(e.lastRefill).Seconds()
	if elapsed > 0 {
		e.tokens = math.Min(float64(q.Burst), e.tokens+elapsed/perToken)
	}
	e.lastRefill = now

	if e.tokens >= 1 {
		e.tokens--
		resetAt := now.Add(time.Duration((float64(q.Burst) - e.tokens) * perToken * float64(time.Second)))
		return storage.Result{
			Allowed:   true,
			Remaining: int(math.Floor(e.tokens)),
			ResetAt:   resetAt,
		}, nil
	}

	// Time until the next token is mintable
	resetAt := now.Add(time.Duration((1 - e.tokens) * perToken * float64(time.Second)))
	return storage.Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
}

// Exempt sets the key's bucket to infinite tokens
func (s *Store) Exempt(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &entry{
		tokens:     math.Inf(1),
		lastRefill: s.now(),
	}
	return nil
}

// Reset removes the bucket for a key
func (s *Store) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Snapshot returns the current bucket states
func (s *Store) Snapshot(ctx context.Context) (map[string]storage.EntrySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]storage.EntrySnapshot, len(s.entries))
	for key, e := range s.entries {
		out[key] = storage.EntrySnapshot{
			Tokens:     e.tokens,
			LastRefill: e.lastRefill,
			Exempt:     math.IsInf(e.tokens, 1),
		}
	}
	return out, nil
}

// Sweep removes buckets idle longer than maxIdle. Exempt entries are kept.
func (s *Store) Sweep(ctx context.Context, maxIdle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if math.IsInf(e.tokens, 1) {
			continue
		}
		if now.Sub(e.lastRefill) > maxIdle {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Close closes the store
func (s *Store) Close() error {
	return nil
}

// evictOldestLocked removes the least recently touched bucket. Caller holds
// the lock.
func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, e := range s.entries {
		if math.IsInf(e.tokens, 1) {
			continue
		}
		if first || e.lastRefill.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.lastRefill
			first = false
		}
	}

	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
