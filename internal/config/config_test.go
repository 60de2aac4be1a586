package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const validYAML = `
gatekeeper:
  server:
    host: "0.0.0.0"
    port: 8080
    readTimeout: 30
    writeTimeout: 30
  store:
    type: memory
    maxEntries: 5000
  ratelimit:
    ip:
      rate: 100
      burst: 120
      period: 60
    user:
      rate: 300
      burst: 350
      period: 60
    endpoint:
      rate: 60
      burst: 70
      period: 60
    endpointOverrides:
      "POST:/auth/login":
        rate: 10
        burst: 10
        period: 60
  bruteforce:
    maxAttempts: 5
    window: 300
    blockDuration: 3600
  csrf:
    ttl: 3600
  admission:
    authPaths:
      - /auth/login
    apiPrefix: /api/v1/
    staticPrefixes:
      - /static/
    securityHeaders: true
  management:
    enabled: true
    host: 127.0.0.1
    port: 9090
`

func TestConfig_LoadFromYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "full valid config",
			yaml:    validYAML,
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				gk := cfg.Gatekeeper
				if gk.Server.Port != 8080 {
					t.Errorf("Expected port 8080, got %d", gk.Server.Port)
				}
				if gk.RateLimit.IP.Rate != 100 || gk.RateLimit.IP.Burst != 120 {
					t.Errorf("Unexpected ip scope: %+v", gk.RateLimit.IP)
				}
				if len(gk.RateLimit.EndpointOverrides) != 1 {
					t.Errorf("Expected 1 endpoint override, got %d", len(gk.RateLimit.EndpointOverrides))
				}
				if gk.BruteForce.BlockDuration != 3600 {
					t.Errorf("Expected blockDuration 3600, got %d", gk.BruteForce.BlockDuration)
				}
				if !gk.Admission.SecurityHeaders {
					t.Error("Expected securityHeaders enabled")
				}
			},
		},
		{
			name: "missing server port",
			yaml: `
gatekeeper:
  store:
    type: memory
  ratelimit:
    ip: {rate: 100, burst: 120, period: 60}
    user: {rate: 300, burst: 350, period: 60}
    endpoint: {rate: 60, burst: 70, period: 60}
  bruteforce: {maxAttempts: 5, window: 300, blockDuration: 3600}
  csrf: {ttl: 3600}
`,
			wantErr: true,
		},
		{
			name: "redis store without addrs",
			yaml: `
gatekeeper:
  server: {port: 8080}
  store:
    type: redis
  ratelimit:
    ip: {rate: 100, burst: 120, period: 60}
    user: {rate: 300, burst: 350, period: 60}
    endpoint: {rate: 60, burst: 70, period: 60}
  bruteforce: {maxAttempts: 5, window: 300, blockDuration: 3600}
  csrf: {ttl: 3600}
`,
			wantErr: true,
		},
		{
			name: "zero rate scope",
			yaml: `
gatekeeper:
  server: {port: 8080}
  store: {type: memory}
  ratelimit:
    ip: {rate: 0, burst: 120, period: 60}
    user: {rate: 300, burst: 350, period: 60}
    endpoint: {rate: 60, burst: 70, period: 60}
  bruteforce: {maxAttempts: 5, window: 300, blockDuration: 3600}
  csrf: {ttl: 3600}
`,
			wantErr: true,
		},
		{
			name: "management port collides with server",
			yaml: `
gatekeeper:
  server: {port: 8080}
  store: {type: memory}
  ratelimit:
    ip: {rate: 100, burst: 120, period: 60}
    user: {rate: 300, burst: 350, period: 60}
    endpoint: {rate: 60, burst: 70, period: 60}
  bruteforce: {maxAttempts: 5, window: 300, blockDuration: 3600}
  csrf: {ttl: 3600}
  management: {enabled: true, port: 8080}
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			if err := yaml.Unmarshal([]byte(tt.yaml), &cfg); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			err := Validate(&cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && err == nil {
				tt.check(t, &cfg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatekeeper.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gatekeeper.Store.MaxEntries != 5000 {
		t.Errorf("maxEntries = %d, want 5000", cfg.Gatekeeper.Store.MaxEntries)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() on missing file should fail")
	}
}

func TestLoadDefault(t *testing.T) {
	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	gk := cfg.Gatekeeper
	if gk.RateLimit.IP.Rate != 100 || gk.RateLimit.User.Rate != 300 || gk.RateLimit.Endpoint.Rate != 60 {
		t.Errorf("unexpected default quotas: %+v", gk.RateLimit)
	}
	if gk.BruteForce.MaxAttempts != 5 || gk.BruteForce.Window != 300 {
		t.Errorf("unexpected default bruteforce: %+v", gk.BruteForce)
	}
	if gk.CSRF.TTL != 3600 {
		t.Errorf("unexpected default csrf ttl: %d", gk.CSRF.TTL)
	}
}

func TestConversions(t *testing.T) {
	rl := RateLimit{
		IP:       Scope{Rate: 100, Burst: 120, Period: 60},
		User:     Scope{Rate: 300, Burst: 350, Period: 60},
		Endpoint: Scope{Rate: 60, Burst: 70, Period: 60},
		EndpointOverrides: map[string]Scope{
			"POST:/auth/login": {Rate: 10, Burst: 10, Period: 30},
		},
	}
	scopes := rl.ToScopes()
	if scopes.IP.Period != time.Minute {
		t.Errorf("ip period = %v, want 1m", scopes.IP.Period)
	}
	override, ok := scopes.EndpointOverrides["POST:/auth/login"]
	if !ok {
		t.Fatal("override not converted")
	}
	if override.Period != 30*time.Second || override.Rate != 10 {
		t.Errorf("override = %+v", override)
	}

	bf := BruteForce{MaxAttempts: 5, Window: 300, BlockDuration: 3600}
	guardCfg := bf.ToGuardConfig()
	if guardCfg.Window != 5*time.Minute || guardCfg.BlockDuration != time.Hour {
		t.Errorf("guard config = %+v", guardCfg)
	}
}
