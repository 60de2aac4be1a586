// Package blocklist maintains the process-wide deny list shared by the
// brute-force guard, the admission gate, and the admin API.
package blocklist

import (
	"log/slog"
	"sync"
	"time"
)

// Permanent marks a block that never expires on its own
const Permanent time.Duration = 0

// Entry describes one blocked key for status reporting
type Entry struct {
	Key       string    `json:"key"`
	Permanent bool      `json:"permanent"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Blocklist tracks denied client keys (IPs or user ids). A zero expiry
// means the block is permanent and requires an explicit Unblock.
type Blocklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an empty blocklist
func New(logger *slog.Logger) *Blocklist {
	if logger == nil {
		logger = slog.Default()
	}
	return &Blocklist{
		entries: make(map[string]time.Time),
		now:     time.Now,
		logger:  logger.With("component", "blocklist"),
	}
}

// SetNow replaces the blocklist's clock. Test hook.
func (b *Blocklist) SetNow(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// Block denies a key for the given duration; Permanent (or any
// non-positive duration) blocks until Unblock is called. A shorter block
// never downgrades an existing longer or permanent one.
func (b *Blocklist) Block(key string, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.entries[key]; ok {
		if existing.IsZero() {
			return
		}
		if duration > 0 && b.now().Add(duration).Before(existing) {
			return
		}
	}

	if duration <= 0 {
		b.entries[key] = time.Time{}
		b.logger.Warn("key blocked permanently", "key", key)
		return
	}

	b.entries[key] = b.now().Add(duration)
	b.logger.Warn("key blocked", "key", key, "duration", duration)
}

// Unblock removes a key from the list
func (b *Blocklist) Unblock(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[key]; ok {
		delete(b.entries, key)
		b.logger.Info("key unblocked", "key", key)
	}
}

// IsBlocked reports whether a key is currently denied. Expired entries are
// removed lazily so correctness never depends on the janitor.
func (b *Blocklist) IsBlocked(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiry, ok := b.entries[key]
	if !ok {
		return false
	}

	if expiry.IsZero() || b.now().Before(expiry) {
		return true
	}

	delete(b.entries, key)
	return false
}

// BlockedUntil returns the expiry for a blocked key; ok is false when the
// key is not blocked. A permanent block reports a zero time.
func (b *Blocklist) BlockedUntil(key string) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiry, ok := b.entries[key]
	if !ok {
		return time.Time{}, false
	}
	if !expiry.IsZero() && !b.now().Before(expiry) {
		delete(b.entries, key)
		return time.Time{}, false
	}
	return expiry, true
}

// Entries returns a snapshot of active blocks
func (b *Blocklist) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	out := make([]Entry, 0, len(b.entries))
	for key, expiry := range b.entries {
		if !expiry.IsZero() && !now.Before(expiry) {
			continue
		}
		out = append(out, Entry{
			Key:       key,
			Permanent: expiry.IsZero(),
			ExpiresAt: expiry,
		})
	}
	return out
}

// Sweep removes expired entries and returns how many were dropped
func (b *Blocklist) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for key, expiry := range b.entries {
		if !expiry.IsZero() && now.After(expiry) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed
}
