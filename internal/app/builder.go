package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gatekeeper/internal/admission"
	"gatekeeper/internal/app/factory"
	"gatekeeper/internal/blocklist"
	"gatekeeper/internal/bruteforce"
	"gatekeeper/internal/config"
	"gatekeeper/internal/core"
	"gatekeeper/internal/csrf"
	httpfrontend "gatekeeper/internal/frontend/http"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/telemetry"
	"gatekeeper/internal/threat"
)

// CSRFTokenPath is served by the gate itself so clients can fetch a token
// before their first mutating request.
const CSRFTokenPath = "/csrf-token"

// Builder builds the gatekeeper application
type Builder struct {
	config     *config.Config
	logger     *slog.Logger
	handler    core.Handler
	configPath string
}

// NewBuilder creates a new application builder
func NewBuilder(cfg *config.Config, logger *slog.Logger) *Builder {
	return &Builder{
		config: cfg,
		logger: logger,
	}
}

// WithHandler sets the protected application handler. Without one the
// server answers every admitted request with a plain 200.
func (b *Builder) WithHandler(handler core.Handler) *Builder {
	b.handler = handler
	return b
}

// WithConfigPath enables hot reload of limiter quotas from the given file
func (b *Builder) WithConfigPath(path string) *Builder {
	b.configPath = path
	return b
}

// Build constructs the gatekeeper server
func (b *Builder) Build() (*Server, error) {
	cfg := &b.config.Gatekeeper

	store, err := factory.CreateLimiterStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating limiter store: %w", err)
	}

	gatekeeperMetrics := factory.CreateMetrics()

	blocks := blocklist.New(b.logger)
	brute := bruteforce.NewGuard(cfg.BruteForce.ToGuardConfig(), blocks, b.logger)
	tokens := csrf.NewStore(time.Duration(cfg.CSRF.TTL)*time.Second, b.logger)
	limits := ratelimit.NewSet(cfg.RateLimit.ToScopes(), store, b.logger)
	scanner := threat.NewScanner()

	ident, err := factory.CreateIdentityProvider(cfg.Auth, b.logger)
	if err != nil {
		return nil, fmt.Errorf("creating identity provider: %w", err)
	}

	gate := admission.NewGate(cfg.Admission.ToGateConfig(), blocks, brute, limits,
		tokens, scanner, ident, gatekeeperMetrics, b.logger)

	handler := b.handler
	if handler == nil {
		handler = defaultHandler
	}
	handler = csrfTokenHandler(gate, ident, handler)
	handler = gate.Middleware()(handler)

	tele, err := factory.CreateTelemetry(cfg.Telemetry, gatekeeperMetrics.Registerer)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry: %w", err)
	}
	if cfg.Telemetry.Enabled {
		telemetryMiddleware, err := telemetry.NewMiddleware(tele)
		if err != nil {
			return nil, fmt.Errorf("creating telemetry middleware: %w", err)
		}
		handler = telemetryMiddleware.Wrap()(handler)
		b.logger.Info("telemetry enabled", "service", cfg.Telemetry.ServiceName)
	}
	handler = middleware.Chain(
		middleware.DefaultRecovery(b.logger),
		middleware.Logging(b.logger),
	)(handler)

	adapter := httpfrontend.New(httpfrontend.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		TLS:          tlsConfig(cfg.Server.TLS),
	}, handler)

	janitor := factory.CreateJanitor(cfg.Janitor, store, blocks, brute, tokens,
		limits, gatekeeperMetrics, b.logger)

	mgmt, err := factory.CreateManagement(cfg.Management, blocks, brute, limits,
		tokens, gatekeeperMetrics.Gatherer, b.logger)
	if err != nil {
		return nil, fmt.Errorf("creating management API: %w", err)
	}

	server := &Server{
		config:    b.config,
		adapter:   adapter,
		janitor:   janitor,
		mgmt:      mgmt,
		telemetry: tele,
		buckets:   store,
		limits:    limits,
		gate:      gate,
		logger:    b.logger,
	}

	if b.configPath != "" {
		watcher, err := config.NewWatcher(b.configPath, &config.WatcherConfig{
			OnChange: func(newConfig *config.Config) error {
				limits.Reconfigure(newConfig.Gatekeeper.RateLimit.ToScopes())
				return nil
			},
			OnError: func(err error) {
				b.logger.Error("config reload failed", "error", err)
			},
		}, b.logger)
		if err != nil {
			return nil, fmt.Errorf("creating config watcher: %w", err)
		}
		server.watcher = watcher
	}

	return server, nil
}

// defaultHandler answers admitted requests when no application handler is
// installed
func defaultHandler(ctx context.Context, req core.Request) (core.Response, error) {
	return core.NewJSONResponse(http.StatusOK, map[string]string{"status": "ok"}), nil
}

// csrfTokenHandler serves the token issuance endpoint in front of the
// application handler. It runs inside the gate, so issuance is itself rate
// limited.
func csrfTokenHandler(gate *admission.Gate, ident identity.Provider, next core.Handler) core.Handler {
	return func(ctx context.Context, req core.Request) (core.Response, error) {
		if req.Method() == http.MethodGet && req.Path() == CSRFTokenPath {
			userID, _ := ident.UserID(ctx, req)
			return core.NewJSONResponse(http.StatusOK, map[string]string{
				"csrfToken": gate.IssueCSRF(userID),
			}), nil
		}
		return next(ctx, req)
	}
}

func tlsConfig(cfg *config.TLS) *httpfrontend.TLSConfig {
	if cfg == nil {
		return nil
	}
	return &httpfrontend.TLSConfig{
		Enabled:  cfg.Enabled,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
	}
}
