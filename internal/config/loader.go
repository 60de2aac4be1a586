package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gatekeeper/pkg/errors"
)

// Loader loads configuration from file
type Loader struct {
	path       string
	envEnabled bool
}

// NewLoader creates a config loader
func NewLoader(path string) *Loader {
	return &Loader{
		path:       path,
		envEnabled: true, // Enable env vars by default
	}
}

// WithEnvVars enables or disables environment variable loading
func (l *Loader) WithEnvVars(enabled bool) *Loader {
	l.envEnabled = enabled
	return l
}

// Load loads the configuration
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeInternal, "failed to read config file").WithCause(err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewError(errors.ErrorTypeInternal, "failed to parse config").WithCause(err)
	}

	// Override with environment variables if enabled
	if l.envEnabled {
		if err := LoadEnv(&cfg); err != nil {
			return nil, errors.NewError(errors.ErrorTypeInternal, "failed to load env vars").WithCause(err)
		}
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, errors.NewError(errors.ErrorTypeBadRequest, "invalid configuration").WithCause(err)
	}

	return &cfg, nil
}

// Load is a convenience wrapper over NewLoader(path).Load()
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Validate checks the configuration for structural problems
func Validate(cfg *Config) error {
	gk := &cfg.Gatekeeper

	if gk.Server.Port <= 0 || gk.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", gk.Server.Port)
	}

	switch gk.Store.Type {
	case "", "memory":
	case "redis":
		if gk.Store.Redis == nil || len(gk.Store.Redis.Addrs) == 0 {
			return fmt.Errorf("redis store requires at least one address")
		}
	default:
		return fmt.Errorf("unknown store type: %s", gk.Store.Type)
	}

	for name, scope := range map[string]Scope{
		"ip":       gk.RateLimit.IP,
		"user":     gk.RateLimit.User,
		"endpoint": gk.RateLimit.Endpoint,
	} {
		if err := validateScope(name, scope); err != nil {
			return err
		}
	}
	for endpoint, scope := range gk.RateLimit.EndpointOverrides {
		if err := validateScope("override "+endpoint, scope); err != nil {
			return err
		}
	}

	if gk.BruteForce.MaxAttempts <= 0 {
		return fmt.Errorf("bruteforce maxAttempts must be positive")
	}
	if gk.BruteForce.Window <= 0 || gk.BruteForce.BlockDuration <= 0 {
		return fmt.Errorf("bruteforce window and blockDuration must be positive")
	}

	if gk.CSRF.TTL <= 0 {
		return fmt.Errorf("csrf ttl must be positive")
	}

	if gk.Management.Enabled {
		if gk.Management.Port <= 0 || gk.Management.Port > 65535 {
			return fmt.Errorf("invalid management port: %d", gk.Management.Port)
		}
		if gk.Management.Port == gk.Server.Port {
			return fmt.Errorf("management port must differ from server port")
		}
	}

	if gk.Auth.JWT != nil && gk.Auth.JWT.Secret == "" {
		return fmt.Errorf("auth jwt requires a secret")
	}

	return nil
}

func validateScope(name string, s Scope) error {
	if s.Rate <= 0 || s.Period <= 0 {
		return fmt.Errorf("ratelimit %s: rate and period must be positive", name)
	}
	if s.Burst <= 0 {
		return fmt.Errorf("ratelimit %s: burst must be positive", name)
	}
	return nil
}
