package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"gatekeeper/internal/admission"
	"gatekeeper/internal/config"
	httpfrontend "gatekeeper/internal/frontend/http"
	"gatekeeper/internal/management"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"
	"gatekeeper/internal/telemetry"
)

// Server represents the gatekeeper server
type Server struct {
	config    *config.Config
	adapter   *httpfrontend.Adapter
	janitor   *admission.Janitor
	mgmt      *management.Component
	watcher   *config.Watcher
	telemetry *telemetry.Telemetry
	buckets   storage.LimiterStore
	limits    *ratelimit.Set
	gate      *admission.Gate
	logger    *slog.Logger
}

// NewServer creates a new gatekeeper server
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	return NewBuilder(cfg, logger).Build()
}

// Gate exposes the admission gate so embedding applications can issue CSRF
// tokens or wrap additional handlers
func (s *Server) Gate() *admission.Gate {
	return s.gate
}

// Handler exposes the gated handler chain as an http.Handler for embedding
func (s *Server) Handler() http.Handler {
	return s.adapter
}

// Start starts the server and its background components. It is
// non-blocking; the server runs until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting gatekeeper",
		"host", s.config.Gatekeeper.Server.Host,
		"port", s.config.Gatekeeper.Server.Port,
	)

	if err := s.adapter.Start(ctx); err != nil {
		return fmt.Errorf("starting HTTP server: %w", err)
	}

	s.janitor.Start()

	if err := s.mgmt.Start(); err != nil {
		s.stopStarted(ctx)
		return fmt.Errorf("starting management API: %w", err)
	}

	if s.watcher != nil {
		s.watcher.Start()
	}

	s.logger.Info("gatekeeper started")
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping gatekeeper")

	var errs []error

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping config watcher: %w", err))
		}
	}

	if err := s.adapter.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping HTTP server: %w", err))
	}

	if err := s.mgmt.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping management API: %w", err))
	}

	s.janitor.Stop()

	if err := s.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
	}

	if err := s.buckets.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing limiter store: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	s.logger.Info("gatekeeper stopped")
	return nil
}

// stopStarted tears down components brought up before a startup failure
func (s *Server) stopStarted(ctx context.Context) {
	s.janitor.Stop()
	if err := s.adapter.Stop(ctx); err != nil {
		s.logger.Error("failed to stop HTTP server", "error", err)
	}
}
