package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gatekeeper/internal/blocklist"
	"gatekeeper/internal/bruteforce"
	"gatekeeper/internal/csrf"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"
	"gatekeeper/pkg/metrics"
)

const (
	// DefaultSweepInterval is how often the janitor runs
	DefaultSweepInterval = time.Minute

	// DefaultBucketIdle is how long a token bucket may sit untouched before
	// it is evicted. Idle buckets are full anyway, so eviction never changes
	// a limit decision.
	DefaultBucketIdle = 10 * time.Minute
)

// Janitor periodically evicts expired state from every store. Sweeping is
// advisory only; each read path re-checks expiry independently.
type Janitor struct {
	interval time.Duration
	maxIdle  time.Duration
	buckets  storage.LimiterStore
	blocks   *blocklist.Blocklist
	brute    *bruteforce.Guard
	tokens   *csrf.Store
	limits   *ratelimit.Set
	metrics  *metrics.Metrics
	logger   *slog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewJanitor creates a janitor over the given stores. Zero interval or
// maxIdle select the defaults.
func NewJanitor(
	interval, maxIdle time.Duration,
	buckets storage.LimiterStore,
	blocks *blocklist.Blocklist,
	brute *bruteforce.Guard,
	tokens *csrf.Store,
	limits *ratelimit.Set,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxIdle <= 0 {
		maxIdle = DefaultBucketIdle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		interval: interval,
		maxIdle:  maxIdle,
		buckets:  buckets,
		blocks:   blocks,
		brute:    brute,
		tokens:   tokens,
		limits:   limits,
		metrics:  m,
		logger:   logger.With("component", "janitor"),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop
func (j *Janitor) Start() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.SweepOnce(context.Background())
			case <-j.done:
				return
			}
		}
	}()
	j.logger.Info("janitor started", "interval", j.interval, "bucket_idle", j.maxIdle)
}

// Stop terminates the sweep loop and waits for an in-flight sweep
func (j *Janitor) Stop() {
	close(j.done)
	j.wg.Wait()
	j.logger.Info("janitor stopped")
}

// SweepOnce runs a single pass over every store
func (j *Janitor) SweepOnce(ctx context.Context) {
	start := time.Now()

	swept, err := j.buckets.Sweep(ctx, j.maxIdle)
	if err != nil {
		j.logger.Error("bucket sweep failed", "error", err)
	}
	blocksSwept := j.blocks.Sweep()
	attemptsSwept := j.brute.Sweep()
	tokensSwept := j.tokens.Sweep()

	elapsed := time.Since(start)
	j.record("buckets", swept)
	j.record("blocklist", blocksSwept)
	j.record("attempts", attemptsSwept)
	j.record("csrf", tokensSwept)

	if j.metrics != nil {
		j.metrics.SweepDuration.Observe(elapsed.Seconds())
		j.metrics.BlockedClients.Set(float64(len(j.blocks.Entries())))
		if j.limits != nil {
			if status, err := j.limits.Status(ctx); err == nil {
				for scope, count := range status.PerScope {
					j.metrics.TrackedBuckets.WithLabelValues(string(scope)).Set(float64(count))
				}
			}
		}
	}

	if swept+blocksSwept+attemptsSwept+tokensSwept > 0 {
		j.logger.Debug("sweep complete",
			"buckets", swept,
			"blocks", blocksSwept,
			"attempt_windows", attemptsSwept,
			"csrf_tokens", tokensSwept,
			"duration", elapsed)
	}
}

func (j *Janitor) record(store string, count int) {
	if j.metrics != nil && count > 0 {
		j.metrics.SweptEntries.WithLabelValues(store).Add(float64(count))
	}
}
