package config

import (
	"time"

	"gatekeeper/internal/admission"
	"gatekeeper/internal/bruteforce"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/ratelimit"
)

// Version is the build version, settable with -ldflags
var Version = "dev"

// Config holds gatekeeper configuration
type Config struct {
	Gatekeeper Gatekeeper `yaml:"gatekeeper"`
}

// Gatekeeper configuration
type Gatekeeper struct {
	Server     Server     `yaml:"server"`
	Store      Store      `yaml:"store"`
	RateLimit  RateLimit  `yaml:"ratelimit"`
	BruteForce BruteForce `yaml:"bruteforce"`
	CSRF       CSRF       `yaml:"csrf"`
	Admission  Admission  `yaml:"admission"`
	Auth       Auth       `yaml:"auth"`
	Janitor    Janitor    `yaml:"janitor"`
	Management Management `yaml:"management"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

// Server configures the listening frontend. Timeouts are in seconds.
type Server struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	TLS          *TLS   `yaml:"tls,omitempty"`
}

// TLS configuration
type TLS struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

// Store selects the limiter backend
type Store struct {
	// Type is "memory" or "redis"
	Type       string `yaml:"type"`
	MaxEntries int    `yaml:"maxEntries"`
	Redis      *Redis `yaml:"redis,omitempty"`
}

// Redis backend configuration
type Redis struct {
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"keyPrefix"`
}

// Scope is one rate limit quota: Rate tokens per Period seconds, bursting
// to Burst.
type Scope struct {
	Rate   int `yaml:"rate"`
	Burst  int `yaml:"burst"`
	Period int `yaml:"period"`
}

func (s Scope) toScope() ratelimit.ScopeConfig {
	return ratelimit.ScopeConfig{
		Rate:   s.Rate,
		Burst:  s.Burst,
		Period: time.Duration(s.Period) * time.Second,
	}
}

// RateLimit holds the three scope quotas and per-endpoint overrides keyed
// by "METHOD:path".
type RateLimit struct {
	IP                Scope            `yaml:"ip"`
	User              Scope            `yaml:"user"`
	Endpoint          Scope            `yaml:"endpoint"`
	EndpointOverrides map[string]Scope `yaml:"endpointOverrides,omitempty"`
}

// ToScopes converts to the limiter's runtime configuration
func (r RateLimit) ToScopes() ratelimit.Config {
	cfg := ratelimit.Config{
		IP:       r.IP.toScope(),
		User:     r.User.toScope(),
		Endpoint: r.Endpoint.toScope(),
	}
	if len(r.EndpointOverrides) > 0 {
		cfg.EndpointOverrides = make(map[string]ratelimit.ScopeConfig, len(r.EndpointOverrides))
		for endpoint, scope := range r.EndpointOverrides {
			cfg.EndpointOverrides[endpoint] = scope.toScope()
		}
	}
	return cfg
}

// BruteForce thresholds. Window and BlockDuration are in seconds.
type BruteForce struct {
	MaxAttempts   int `yaml:"maxAttempts"`
	Window        int `yaml:"window"`
	BlockDuration int `yaml:"blockDuration"`
}

// ToGuardConfig converts to the guard's runtime configuration
func (b BruteForce) ToGuardConfig() bruteforce.Config {
	return bruteforce.Config{
		MaxAttempts:   b.MaxAttempts,
		Window:        time.Duration(b.Window) * time.Second,
		BlockDuration: time.Duration(b.BlockDuration) * time.Second,
	}
}

// CSRF token settings. TTL is in seconds.
type CSRF struct {
	TTL int `yaml:"ttl"`
}

// Admission configures gate behavior around the checks
type Admission struct {
	AuthPaths         []string `yaml:"authPaths"`
	APIPrefix         string   `yaml:"apiPrefix"`
	StaticPrefixes    []string `yaml:"staticPrefixes"`
	TrustForwardedFor bool     `yaml:"trustForwardedFor"`
	SecurityHeaders   bool     `yaml:"securityHeaders"`
}

// ToGateConfig converts to the gate's runtime configuration
func (a Admission) ToGateConfig() admission.Config {
	return admission.Config{
		AuthPaths:         a.AuthPaths,
		APIPrefix:         a.APIPrefix,
		StaticPrefixes:    a.StaticPrefixes,
		TrustForwardedFor: a.TrustForwardedFor,
		SecurityHeaders:   a.SecurityHeaders,
	}
}

// Auth configures the identity provider. Without a jwt section every
// request is treated as anonymous.
type Auth struct {
	JWT *identity.JWTConfig `yaml:"jwt,omitempty"`
}

// Janitor sweep settings in seconds
type Janitor struct {
	Interval   int `yaml:"interval"`
	BucketIdle int `yaml:"bucketIdle"`
}

// Management configures the admin API listener
type Management struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"authToken"`
}

// Telemetry configures tracing export
type Telemetry struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"serviceName"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}
