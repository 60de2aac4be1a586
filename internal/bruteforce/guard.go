// Package bruteforce tracks failed authentication attempts per client IP
// and feeds the blocklist once an IP crosses the failure threshold.
package bruteforce

import (
	"log/slog"
	"sync"
	"time"

	"gatekeeper/internal/blocklist"
)

// Config holds brute-force protection settings
type Config struct {
	// MaxAttempts is the number of failures inside Window that triggers a block
	MaxAttempts int
	// Window is the sliding window over failed attempts
	Window time.Duration
	// BlockDuration is how long a triggered block lasts
	BlockDuration time.Duration
}

// DefaultConfig returns the default thresholds: 5 failures in 5 minutes
// block the IP for an hour.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		Window:        5 * time.Minute,
		BlockDuration: time.Hour,
	}
}

// Guard implements sliding-window brute-force detection
type Guard struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	config   Config
	blocks   *blocklist.Blocklist
	now      func() time.Time
	logger   *slog.Logger
}

// NewGuard creates a guard writing triggered blocks into blocks
func NewGuard(config Config, blocks *blocklist.Blocklist, logger *slog.Logger) *Guard {
	if config.MaxAttempts <= 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		attempts: make(map[string][]time.Time),
		config:   config,
		blocks:   blocks,
		now:      time.Now,
		logger:   logger.With("component", "bruteforce"),
	}
}

// SetNow replaces the guard's clock. Test hook.
func (g *Guard) SetNow(now func() time.Time) {
	g.mu.Lock()
	g.now = now
	g.mu.Unlock()
}

// PermitAttempt reports whether an authentication attempt from ip may
// proceed. It prunes stale failures but never records anything itself.
func (g *Guard) PermitAttempt(ip string) bool {
	if g.blocks.IsBlocked(ip) {
		return false
	}

	g.mu.Lock()
	g.pruneLocked(ip)
	g.mu.Unlock()
	return true
}

// RecordResult records the outcome of an authentication attempt. A success
// clears the IP's window; the failure that reaches the threshold inserts a
// timed block. It reports whether this call inserted a block.
func (g *Guard) RecordResult(ip string, success bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if success {
		delete(g.attempts, ip)
		return false
	}

	g.pruneLocked(ip)
	g.attempts[ip] = append(g.attempts[ip], g.now())

	if len(g.attempts[ip]) >= g.config.MaxAttempts {
		g.logger.Warn("brute force threshold reached",
			"ip", ip,
			"attempts", len(g.attempts[ip]),
			"block_duration", g.config.BlockDuration,
		)
		g.blocks.Block(ip, g.config.BlockDuration)
		delete(g.attempts, ip)
		return true
	}
	return false
}

// Failures returns the number of failures currently inside the window
func (g *Guard) Failures(ip string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked(ip)
	return len(g.attempts[ip])
}

// Sweep drops windows that emptied out and returns how many were removed
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for ip := range g.attempts {
		g.pruneLocked(ip)
		if len(g.attempts[ip]) == 0 {
			delete(g.attempts, ip)
			removed++
		}
	}
	return removed
}

// TrackedIPs returns how many IPs currently have failures on record
func (g *Guard) TrackedIPs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.attempts)
}

// pruneLocked drops attempts older than the window. Caller holds the lock.
func (g *Guard) pruneLocked(ip string) {
	cutoff := g.now().Add(-g.config.Window)
	kept := g.attempts[ip][:0]
	for _, ts := range g.attempts[ip] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(g.attempts, ip)
		return
	}
	g.attempts[ip] = kept
}
