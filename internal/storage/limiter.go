package storage

import (
	"context"
	"time"
)

// Quota describes a token bucket: Rate tokens minted per Period, with burst
// capacity Burst.
type Quota struct {
	Rate   int
	Burst  int
	Period time.Duration
}

// Result is the outcome of a bucket check
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// EntrySnapshot exposes raw bucket state for dashboards. Exempt entries
// report Exempt=true and a meaningless token count.
type EntrySnapshot struct {
	Tokens     float64
	LastRefill time.Time
	Exempt     bool
}

// LimiterStore defines the interface for rate limiter storage
type LimiterStore interface {
	// Check consumes one token from the bucket for key, creating it at full
	// capacity on first reference
	Check(ctx context.Context, key string, q Quota) (Result, error)

	// Exempt marks key as never rate limited. Exemption survives sweeps
	// until Reset is called.
	Exempt(ctx context.Context, key string) error

	// Reset removes the bucket (and any exemption) for key
	Reset(ctx context.Context, key string) error

	// Snapshot returns the current bucket states
	Snapshot(ctx context.Context) (map[string]EntrySnapshot, error)

	// Sweep removes buckets idle for longer than maxIdle and returns how
	// many were removed. Correctness never depends on it; it only bounds
	// memory growth.
	Sweep(ctx context.Context, maxIdle time.Duration) (int, error)

	// Close closes the store and releases resources
	Close() error
}

// LimiterStoreConfig defines common configuration for limiter stores
type LimiterStoreConfig struct {
	// MaxEntries is the maximum number of buckets to keep (0 = unlimited)
	MaxEntries int
}

// DefaultConfig returns default configuration
func DefaultConfig() *LimiterStoreConfig {
	return &LimiterStoreConfig{
		MaxEntries: 10000, // Prevent unbounded memory growth
	}
}
