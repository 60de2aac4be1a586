package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"gatekeeper/internal/core"
	"gatekeeper/internal/storage"
)

// Scope identifies one of the independent rate limit pools a request is
// checked against.
type Scope string

const (
	ScopeIP       Scope = "ip"
	ScopeUser     Scope = "user"
	ScopeEndpoint Scope = "endpoint"
)

// ScopeConfig carries the quota for one scope
type ScopeConfig struct {
	Rate   int
	Burst  int
	Period time.Duration
}

func (c ScopeConfig) quota() storage.Quota {
	return storage.Quota{Rate: c.Rate, Burst: c.Burst, Period: c.Period}
}

// Config defines the quotas for all three scopes plus per-endpoint overrides
// keyed by "METHOD:path".
type Config struct {
	IP                ScopeConfig
	User              ScopeConfig
	Endpoint          ScopeConfig
	EndpointOverrides map[string]ScopeConfig
}

// DefaultConfig returns the stock quotas
func DefaultConfig() Config {
	return Config{
		IP:       ScopeConfig{Rate: 100, Burst: 120, Period: time.Minute},
		User:     ScopeConfig{Rate: 300, Burst: 350, Period: time.Minute},
		Endpoint: ScopeConfig{Rate: 60, Burst: 70, Period: time.Minute},
	}
}

// Decision is the outcome of evaluating all applicable scopes for a request.
// Headers holds the rate limit headers to attach to an allowed response;
// denied responses carry only Retry-After.
type Decision struct {
	Allowed    bool
	Scope      Scope
	Headers    map[string]string
	RetryAfter time.Duration
}

// Set evaluates a request against the ip, user and endpoint pools. All three
// scopes share one LimiterStore; keys are prefixed per scope so pools never
// collide.
type Set struct {
	mu     sync.RWMutex
	config Config
	store  storage.LimiterStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSet creates a scope set backed by store
func NewSet(cfg Config, store storage.LimiterStore, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set{
		config: cfg,
		store:  store,
		logger: logger.With("component", "ratelimit"),
		now:    time.Now,
	}
}

// SetNow overrides the clock, for tests
func (s *Set) SetNow(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Reconfigure swaps in new quotas. In-flight buckets keep their token counts;
// the new quota applies from the next check.
func (s *Set) Reconfigure(cfg Config) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	s.logger.Info("rate limit quotas updated",
		"ip_rate", cfg.IP.Rate,
		"user_rate", cfg.User.Rate,
		"endpoint_rate", cfg.Endpoint.Rate,
		"overrides", len(cfg.EndpointOverrides))
}

// EndpointKey builds the signature an endpoint pool is keyed on
func EndpointKey(method, path string) string {
	return method + ":" + path
}

// Evaluate checks the request against the ip pool, the user pool when userID
// is non-empty, and the endpoint pool. Every applicable pool is consulted
// even after one denies, so each records the attempt. The primary header set
// reflects the user pool for authenticated requests and the ip pool
// otherwise; the endpoint pool always reports through its own header trio.
func (s *Set) Evaluate(ctx context.Context, req core.Request, clientIP, userID string) (Decision, error) {
	s.mu.RLock()
	cfg := s.config
	now := s.now
	s.mu.RUnlock()

	endpoint := EndpointKey(req.Method(), req.Path())

	epCfg := cfg.Endpoint
	if override, ok := cfg.EndpointOverrides[endpoint]; ok {
		epCfg = override
	}

	ipRes, err := s.store.Check(ctx, "ip:"+clientIP, cfg.IP.quota())
	if err != nil {
		return Decision{}, fmt.Errorf("ip scope check: %w", err)
	}

	var userRes storage.Result
	authenticated := userID != ""
	if authenticated {
		userRes, err = s.store.Check(ctx, "user:"+userID, cfg.User.quota())
		if err != nil {
			return Decision{}, fmt.Errorf("user scope check: %w", err)
		}
	}

	epRes, err := s.store.Check(ctx, "endpoint:"+endpoint+"|"+clientIP, epCfg.quota())
	if err != nil {
		return Decision{}, fmt.Errorf("endpoint scope check: %w", err)
	}

	primary, primaryCfg, primaryScope := ipRes, cfg.IP, ScopeIP
	if authenticated {
		primary, primaryCfg, primaryScope = userRes, cfg.User, ScopeUser
	}

	headers := map[string]string{
		"X-RateLimit-Limit":              strconv.Itoa(primaryCfg.Rate),
		"X-RateLimit-Remaining":          strconv.Itoa(primary.Remaining),
		"X-RateLimit-Reset":              strconv.FormatInt(primary.ResetAt.Unix(), 10),
		"X-RateLimit-Endpoint-Limit":     strconv.Itoa(epCfg.Rate),
		"X-RateLimit-Endpoint-Remaining": strconv.Itoa(epRes.Remaining),
		"X-RateLimit-Endpoint-Reset":     strconv.FormatInt(epRes.ResetAt.Unix(), 10),
	}

	decision := Decision{Allowed: true, Scope: primaryScope, Headers: headers}

	if ipRes.Allowed && (!authenticated || userRes.Allowed) && epRes.Allowed {
		return decision, nil
	}

	decision.Allowed = false
	switch {
	case !ipRes.Allowed:
		decision.Scope = ScopeIP
	case authenticated && !userRes.Allowed:
		decision.Scope = ScopeUser
	default:
		decision.Scope = ScopeEndpoint
	}

	// Retry-After reflects the soonest reset among the failing pools.
	var soonest time.Time
	if !ipRes.Allowed {
		soonest = ipRes.ResetAt
	}
	if authenticated && !userRes.Allowed && (soonest.IsZero() || userRes.ResetAt.Before(soonest)) {
		soonest = userRes.ResetAt
	}
	if !epRes.Allowed && (soonest.IsZero() || epRes.ResetAt.Before(soonest)) {
		soonest = epRes.ResetAt
	}
	wait := soonest.Sub(now())
	if wait < time.Second {
		wait = time.Second
	}
	decision.RetryAfter = wait.Round(time.Second)

	s.logger.Debug("rate limit exceeded",
		"scope", string(decision.Scope),
		"client_ip", clientIP,
		"endpoint", endpoint,
		"retry_after", decision.RetryAfter)

	return decision, nil
}

// ExemptIP marks an ip address as never rate limited in the ip scope
func (s *Set) ExemptIP(ctx context.Context, ip string) error {
	return s.store.Exempt(ctx, "ip:"+ip)
}

// ExemptUser marks a user as never rate limited in the user scope
func (s *Set) ExemptUser(ctx context.Context, userID string) error {
	return s.store.Exempt(ctx, "user:"+userID)
}

// ResetIP clears the ip scope bucket (and any exemption) for ip
func (s *Set) ResetIP(ctx context.Context, ip string) error {
	return s.store.Reset(ctx, "ip:"+ip)
}

// ResetUser clears the user scope bucket (and any exemption) for userID
func (s *Set) ResetUser(ctx context.Context, userID string) error {
	return s.store.Reset(ctx, "user:"+userID)
}

// Status summarizes the live pools for the management API
type Status struct {
	Config      Config        `json:"-"`
	TrackedKeys int           `json:"tracked_keys"`
	PerScope    map[Scope]int `json:"per_scope"`
	Exempt      []string      `json:"exempt,omitempty"`
	Quotas      map[Scope]any `json:"quotas"`
}

// Status reports a snapshot of the pools. Stores without snapshot support
// report zero tracked keys.
func (s *Set) Status(ctx context.Context) (Status, error) {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("limiter snapshot: %w", err)
	}

	st := Status{
		Config:      cfg,
		TrackedKeys: len(snap),
		PerScope:    map[Scope]int{ScopeIP: 0, ScopeUser: 0, ScopeEndpoint: 0},
		Quotas: map[Scope]any{
			ScopeIP:       cfg.IP,
			ScopeUser:     cfg.User,
			ScopeEndpoint: cfg.Endpoint,
		},
	}
	for key, entry := range snap {
		switch {
		case strings.HasPrefix(key, "ip:"):
			st.PerScope[ScopeIP]++
		case strings.HasPrefix(key, "user:"):
			st.PerScope[ScopeUser]++
		case strings.HasPrefix(key, "endpoint:"):
			st.PerScope[ScopeEndpoint]++
		}
		if entry.Exempt {
			st.Exempt = append(st.Exempt, key)
		}
	}
	return st, nil
}
