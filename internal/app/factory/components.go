// Package factory assembles the admission components from their config
// sections.
package factory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"gatekeeper/internal/admission"
	"gatekeeper/internal/blocklist"
	"gatekeeper/internal/bruteforce"
	"gatekeeper/internal/config"
	"gatekeeper/internal/csrf"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/management"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"
	memorystore "gatekeeper/internal/storage/memory"
	redisstore "gatekeeper/internal/storage/redis"
	"gatekeeper/internal/telemetry"
	"gatekeeper/pkg/factory"
	"gatekeeper/pkg/metrics"
)

// CreateLimiterStore creates the bucket store backend selected by config
func CreateLimiterStore(cfg config.Store) (storage.LimiterStore, error) {
	storeConfig := &storage.LimiterStoreConfig{MaxEntries: cfg.MaxEntries}
	if cfg.MaxEntries <= 0 {
		storeConfig = storage.DefaultConfig()
	}

	switch cfg.Type {
	case "", "memory":
		return memorystore.NewStore(storeConfig), nil
	case "redis":
		if cfg.Redis == nil || len(cfg.Redis.Addrs) == 0 {
			return nil, fmt.Errorf("redis store requires addresses")
		}
		client := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		adapter := redisstore.NewClientAdapter(client)
		return redisstore.NewStoreWithPrefix(adapter, storeConfig, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// CreateIdentityProvider creates the identity provider. Without a jwt
// section every request is anonymous.
func CreateIdentityProvider(cfg config.Auth, logger *slog.Logger) (identity.Provider, error) {
	if cfg.JWT == nil {
		return identity.Anonymous{}, nil
	}
	return identity.NewJWTProvider(*cfg.JWT, logger)
}

// CreateMetrics creates the metric bundle on a private registry so tests
// and multiple instances never collide on the default registerer
func CreateMetrics() *metrics.Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	return metrics.NewWithRegistry(registry, registry)
}

// CreateTelemetry creates the OpenTelemetry providers, exporting otel
// metrics through the same registry the management API serves
func CreateTelemetry(cfg config.Telemetry, registerer prometheus.Registerer) (*telemetry.Telemetry, error) {
	service := cfg.ServiceName
	if service == "" {
		service = "gatekeeper"
	}
	return telemetry.New(telemetry.Config{
		Enabled:  cfg.Enabled,
		Service:  service,
		Version:  config.Version,
		Endpoint: cfg.OTLPEndpoint,
	}, registerer)
}

// CreateJanitor creates the background sweeper over every expirable store
func CreateJanitor(
	cfg config.Janitor,
	buckets storage.LimiterStore,
	blocks *blocklist.Blocklist,
	brute *bruteforce.Guard,
	tokens *csrf.Store,
	limits *ratelimit.Set,
	m *metrics.Metrics,
	logger *slog.Logger,
) *admission.Janitor {
	return admission.NewJanitor(
		time.Duration(cfg.Interval)*time.Second,
		time.Duration(cfg.BucketIdle)*time.Second,
		buckets, blocks, brute, tokens, limits, m, logger,
	)
}

// CreateManagement builds the management API component through the
// component framework
func CreateManagement(
	cfg config.Management,
	blocks *blocklist.Blocklist,
	brute *bruteforce.Guard,
	limits *ratelimit.Set,
	tokens *csrf.Store,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) (*management.Component, error) {
	component := management.NewComponent(logger)
	component.SetStores(blocks, brute, limits, tokens, gatherer)
	return factory.BuildWithLogger(component, cfg, logger)
}
