// Package redis provides a Redis-backed LimiterStore for multi-instance
// deployments. The in-memory store is the default; this backend exists so
// horizontally scaled processes can share one set of buckets instead of
// running N independent limiters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/storage"
)

// DefaultKeyPrefix namespaces bucket keys in a shared Redis
const DefaultKeyPrefix = "ratelimit:"

// Store implements LimiterStore using Redis
type Store struct {
	client Client
	config *storage.LimiterStoreConfig
	prefix string
	script string // Lua script for an atomic token-bucket check
}

// NewStore creates a new Redis store
func NewStore(client Client, config *storage.LimiterStoreConfig) *Store {
	return NewStoreWithPrefix(client, config, DefaultKeyPrefix)
}

// NewStoreWithPrefix creates a Redis store with a custom key prefix
func NewStoreWithPrefix(client Client, config *storage.LimiterStoreConfig, prefix string) *Store {
	if config == nil {
		config = storage.DefaultConfig()
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	// Bucket state lives in a hash {tokens, ts}; refill and consume happen
	// atomically inside the script. Times are in milliseconds.
	script := `
		local key = KEYS[1]
		local rate = tonumber(ARGV[1])
		local burst = tonumber(ARGV[2])
		local period = tonumber(ARGV[3])
		local now = tonumber(ARGV[4])

		if redis.call('EXISTS', key .. ':exempt') == 1 then
			return {1, burst, now}
		end

		local per_token = period / rate
		local bucket = redis.call('HMGET', key, 'tokens', 'ts')
		local tokens = tonumber(bucket[1])
		local ts = tonumber(bucket[2])
		if tokens == nil then
			tokens = burst
			ts = now
		end

		tokens = math.min(burst, tokens + (now - ts) / per_token)

		local allowed = 0
		local reset
		if tokens >= 1 then
			allowed = 1
			tokens = tokens - 1
			reset = now + (burst - tokens) * per_token
		else
			reset = now + (1 - tokens) * per_token
		end

		redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now)
		redis.call('PEXPIRE', key, math.ceil(period * 2))

		return {allowed, math.floor(tokens), math.ceil(reset)}
	`

	return &Store{
		client: client,
		config: config,
		prefix: prefix,
		script: script,
	}
}

// Check consumes one token for key under quota q
func (s *Store) Check(ctx context.Context, key string, q storage.Quota) (storage.Result, error) {
	now := time.Now()
	redisKey := s.prefix + key

	result, err := s.client.Eval(ctx, s.script, []string{redisKey},
		q.Rate,
		q.Burst,
		q.Period.Milliseconds(),
		now.UnixMilli(),
	)
	if err != nil {
		return storage.Result{}, fmt.Errorf("failed to execute rate limit script: %w", err)
	}

	res, ok := result.([]interface{})
	if !ok || len(res) != 3 {
		return storage.Result{}, errors.New("invalid rate limit script result")
	}

	allowed, ok1 := res[0].(int64)
	remaining, ok2 := res[1].(int64)
	resetMilli, ok3 := res[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return storage.Result{}, errors.New("invalid rate limit script result types")
	}

	return storage.Result{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetAt:   time.UnixMilli(resetMilli),
	}, nil
}

// Exempt marks a key as never rate limited
func (s *Store) Exempt(ctx context.Context, key string) error {
	return s.client.Set(ctx, s.prefix+key+":exempt", 1, 0)
}

// Reset removes the bucket and any exemption for a key
func (s *Store) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx,
		s.prefix+key,
		s.prefix+key+":exempt",
	)
}

// Snapshot is not supported for the Redis backend; the status API reports
// per-instance state only.
func (s *Store) Snapshot(ctx context.Context) (map[string]storage.EntrySnapshot, error) {
	return map[string]storage.EntrySnapshot{}, nil
}

// Sweep is a no-op: bucket keys carry a PEXPIRE and Redis evicts them
func (s *Store) Sweep(ctx context.Context, maxIdle time.Duration) (int, error) {
	return 0, nil
}

// Close closes the store
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
