package management

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatekeeper/internal/blocklist"
	"gatekeeper/internal/bruteforce"
	"gatekeeper/internal/config"
	"gatekeeper/internal/csrf"
	"gatekeeper/internal/ratelimit"
)

// API provides the operational endpoints: block/unblock/exempt controls, a
// status snapshot for dashboards, health probes, and /metrics.
type API struct {
	config config.Management
	logger *slog.Logger
	server *http.Server
	mux    *http.ServeMux

	blocks *blocklist.Blocklist
	brute  *bruteforce.Guard
	limits *ratelimit.Set
	tokens *csrf.Store

	startTime time.Time
}

// NewAPI creates a new management API over the admission stores
func NewAPI(
	cfg config.Management,
	blocks *blocklist.Blocklist,
	brute *bruteforce.Guard,
	limits *ratelimit.Set,
	tokens *csrf.Store,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	api := &API{
		config:    cfg,
		logger:    logger.With("component", "management-api"),
		mux:       http.NewServeMux(),
		blocks:    blocks,
		brute:     brute,
		limits:    limits,
		tokens:    tokens,
		startTime: time.Now(),
	}
	api.setupRoutes(gatherer)
	return api
}

// setupRoutes configures all management endpoints
func (api *API) setupRoutes(gatherer prometheus.Gatherer) {
	api.mux.HandleFunc("/management/health", api.handleHealth)
	api.mux.HandleFunc("/management/health/live", api.handleLiveness)
	api.mux.HandleFunc("/management/health/ready", api.handleReadiness)
	api.mux.HandleFunc("/management/info", api.handleInfo)

	api.mux.HandleFunc("/management/status", api.handleStatus)
	api.mux.HandleFunc("/management/blocked", api.handleBlocked)
	api.mux.HandleFunc("/management/block", api.handleBlock)
	api.mux.HandleFunc("/management/unblock", api.handleUnblock)
	api.mux.HandleFunc("/management/exempt", api.handleExempt)

	api.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routed handler with auth applied, for tests and
// embedding
func (api *API) Handler() http.Handler {
	if api.config.AuthToken != "" {
		return api.authMiddleware(api.mux)
	}
	return api.mux
}

// Start starts the management API server
func (api *API) Start(ctx context.Context) error {
	if !api.config.Enabled {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", api.config.Host, api.config.Port)
	api.server = &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	go func() {
		api.logger.Info("Starting management API", "address", addr)
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			api.logger.Error("Management API error", "error", err)
		}
	}()

	return nil
}

// Stop stops the management API server
func (api *API) Stop(ctx context.Context) error {
	if api.server == nil {
		return nil
	}

	api.logger.Info("Stopping management API")
	return api.server.Shutdown(ctx)
}

// authMiddleware enforces the bearer token on every endpoint
func (api *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != "Bearer "+api.config.AuthToken && token != api.config.AuthToken {
			api.writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Response types
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

type InfoResponse struct {
	Version   string    `json:"version"`
	StartTime time.Time `json:"startTime"`
	Uptime    string    `json:"uptime"`
	GoVersion string    `json:"goVersion"`
}

type StatusResponse struct {
	Uptime            string            `json:"uptime"`
	Limiters          ratelimit.Status  `json:"limiters"`
	Blocklist         []blocklist.Entry `json:"blocklist"`
	TrackedAttemptIPs int               `json:"trackedAttemptIps"`
	CSRFTokens        int               `json:"csrfTokens"`
}

type BlockRequest struct {
	IP string `json:"ip"`
	// Duration in seconds; zero means permanent
	Duration int `json:"duration"`
}

type ExemptRequest struct {
	IP   string `json:"ip,omitempty"`
	User string `json:"user,omitempty"`
}

// Handler implementations
func (api *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	api.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(api.startTime).String(),
	})
}

func (api *API) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (api *API) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if api.blocks == nil || api.limits == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Not Ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (api *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	api.writeJSON(w, http.StatusOK, InfoResponse{
		Version:   config.Version,
		StartTime: api.startTime,
		Uptime:    time.Since(api.startTime).String(),
		GoVersion: runtime.Version(),
	})
}

func (api *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limiters, err := api.limits.Status(r.Context())
	if err != nil {
		api.writeError(w, http.StatusInternalServerError, "limiter status unavailable")
		return
	}

	api.writeJSON(w, http.StatusOK, StatusResponse{
		Uptime:            time.Since(api.startTime).String(),
		Limiters:          limiters,
		Blocklist:         api.blocks.Entries(),
		TrackedAttemptIPs: api.brute.TrackedIPs(),
		CSRFTokens:        api.tokens.Len(),
	})
}

func (api *API) handleBlocked(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	api.writeJSON(w, http.StatusOK, api.blocks.Entries())
}

func (api *API) handleBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
		api.writeError(w, http.StatusBadRequest, "ip is required")
		return
	}
	if req.Duration < 0 {
		api.writeError(w, http.StatusBadRequest, "duration must not be negative")
		return
	}

	api.blocks.Block(req.IP, time.Duration(req.Duration)*time.Second)
	api.logger.Info("ip blocked via management API", "ip", req.IP, "duration_s", req.Duration)
	api.writeJSON(w, http.StatusOK, map[string]string{"status": "blocked"})
}

func (api *API) handleUnblock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
		api.writeError(w, http.StatusBadRequest, "ip is required")
		return
	}

	api.blocks.Unblock(req.IP)
	api.logger.Info("ip unblocked via management API", "ip", req.IP)
	api.writeJSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

func (api *API) handleExempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ExemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.IP == "" && req.User == "") {
		api.writeError(w, http.StatusBadRequest, "ip or user is required")
		return
	}

	if req.IP != "" {
		if err := api.limits.ExemptIP(r.Context(), req.IP); err != nil {
			api.writeError(w, http.StatusInternalServerError, "exemption failed")
			return
		}
		api.logger.Info("ip exempted via management API", "ip", req.IP)
	}
	if req.User != "" {
		if err := api.limits.ExemptUser(r.Context(), req.User); err != nil {
			api.writeError(w, http.StatusInternalServerError, "exemption failed")
			return
		}
		api.logger.Info("user exempted via management API", "user", req.User)
	}
	api.writeJSON(w, http.StatusOK, map[string]string{"status": "exempted"})
}

func (api *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Error("failed to encode response", "error", err)
	}
}

func (api *API) writeError(w http.ResponseWriter, status int, message string) {
	api.writeJSON(w, status, map[string]string{"error": message})
}
