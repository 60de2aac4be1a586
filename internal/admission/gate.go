package admission

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gatekeeper/internal/blocklist"
	"gatekeeper/internal/bruteforce"
	"gatekeeper/internal/core"
	"gatekeeper/internal/csrf"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/threat"
	"gatekeeper/pkg/errors"
	"gatekeeper/pkg/metrics"
)

// Check names used in logs and metrics
const (
	CheckBlocklist  = "blocklist"
	CheckBruteForce = "bruteforce"
	CheckRateLimit  = "ratelimit"
	CheckCSRF       = "csrf"
	CheckThreat     = "threat"
)

// Config defines gate behavior around the individual checks
type Config struct {
	// AuthPaths are path prefixes treated as authentication endpoints. The
	// brute force guard only applies to these.
	AuthPaths []string

	// APIPrefix marks token-authenticated routes. State-changing requests
	// under it skip CSRF validation; everything else state-changing needs a
	// valid token.
	APIPrefix string

	// StaticPrefixes are served without any admission checks
	StaticPrefixes []string

	// TrustForwardedFor keys clients on the first X-Forwarded-For hop
	TrustForwardedFor bool

	// SecurityHeaders attaches the standard hardening header set to every
	// response
	SecurityHeaders bool
}

// DefaultConfig returns the stock gate configuration
func DefaultConfig() Config {
	return Config{
		AuthPaths:       []string{"/auth/login", "/auth/register", "/login"},
		APIPrefix:       "/api/v1/",
		StaticPrefixes:  []string{"/static/"},
		SecurityHeaders: true,
	}
}

// securityHeaders is the hardening set attached to responses when enabled
var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Content-Security-Policy":   "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:; font-src 'self'; connect-src 'self'",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Cache-Control":             "no-store, no-cache, must-revalidate, max-age=0",
	"Pragma":                    "no-cache",
}

// Gate runs every admission check for a request in order and short-circuits
// on the first rejection. Checks are pure in-memory decisions; the gate never
// blocks on I/O for the default store.
type Gate struct {
	config  Config
	blocks  *blocklist.Blocklist
	brute   *bruteforce.Guard
	limits  *ratelimit.Set
	tokens  *csrf.Store
	scanner *threat.Scanner
	ident   identity.Provider
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewGate creates the orchestrator. ident may be nil for fully anonymous
// deployments; m may be nil to disable instrumentation.
func NewGate(
	config Config,
	blocks *blocklist.Blocklist,
	brute *bruteforce.Guard,
	limits *ratelimit.Set,
	tokens *csrf.Store,
	scanner *threat.Scanner,
	ident identity.Provider,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Gate {
	if ident == nil {
		ident = identity.Anonymous{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		config:  config,
		blocks:  blocks,
		brute:   brute,
		limits:  limits,
		tokens:  tokens,
		scanner: scanner,
		ident:   ident,
		metrics: m,
		logger:  logger.With("component", "admission"),
	}
}

// IssueCSRF mints a token for the given user (empty for anonymous sessions)
func (g *Gate) IssueCSRF(userID string) string {
	token := g.tokens.Issue(userID)
	if g.metrics != nil {
		g.metrics.CSRFIssued.Inc()
	}
	return token
}

// Middleware wraps a handler with the full admission chain
func (g *Gate) Middleware() core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, req core.Request) (core.Response, error) {
			return g.admit(ctx, req, next)
		}
	}
}

func (g *Gate) admit(ctx context.Context, req core.Request, next core.Handler) (core.Response, error) {
	path := req.Path()
	for _, prefix := range g.config.StaticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return next(ctx, req)
		}
	}

	start := time.Now()
	clientIP := core.ClientIP(req, g.config.TrustForwardedFor)

	if g.blocks.IsBlocked(clientIP) {
		g.reject(CheckBlocklist, req, "client_ip", clientIP)
		return g.finish(req, start, g.accessDenied()), nil
	}
	g.admitCheck(CheckBlocklist)

	authPath := g.isAuthPath(path)
	if authPath && !g.brute.PermitAttempt(clientIP) {
		g.reject(CheckBruteForce, req, "client_ip", clientIP)
		return g.finish(req, start, g.accessDenied()), nil
	}
	g.admitCheck(CheckBruteForce)

	userID, _ := g.ident.UserID(ctx, req)

	decision, err := g.limits.Evaluate(ctx, req, clientIP, userID)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeInternal, "rate limit evaluation failed").
			WithCause(err).
			WithDetail("client_ip", clientIP)
	}
	if !decision.Allowed {
		g.reject(CheckRateLimit, req, "scope", string(decision.Scope), "client_ip", clientIP)
		if g.metrics != nil {
			g.metrics.RateLimitRejected.WithLabelValues(string(decision.Scope)).Inc()
		}
		return g.finish(req, start, g.rateLimited(decision.RetryAfter)), nil
	}
	g.admitCheck(CheckRateLimit)

	if g.needsCSRF(req.Method(), path) {
		token := csrfToken(req)
		if !g.tokens.Validate(token) {
			g.reject(CheckCSRF, req, "client_ip", clientIP, "token_present", token != "")
			if g.metrics != nil {
				g.metrics.CSRFFailures.Inc()
			}
			return g.finish(req, start, g.accessDenied()), nil
		}
	}
	g.admitCheck(CheckCSRF)

	if finding := g.scanRequest(req); finding != nil {
		g.reject(CheckThreat, req,
			"category", finding.Category,
			"path", finding.Path,
			"client_ip", clientIP)
		if g.metrics != nil {
			g.metrics.ThreatDetections.WithLabelValues(string(finding.Category)).Inc()
		}
		return g.finish(req, start, g.invalidInput()), nil
	}
	g.admitCheck(CheckThreat)

	resp, err := next(ctx, req)
	if err != nil {
		return resp, err
	}

	if authPath {
		switch status := resp.StatusCode(); {
		case status == 401 || status == 403:
			blocked := g.brute.RecordResult(clientIP, false)
			if g.metrics != nil {
				g.metrics.LoginFailures.Inc()
				if blocked {
					g.metrics.BruteBlocks.Inc()
				}
			}
		case status < 400:
			g.brute.RecordResult(clientIP, true)
		}
	}

	applyHeaders(resp, decision.Headers)
	return g.finish(req, start, resp), nil
}

// finish applies response-wide headers and records request metrics. It is
// the single exit point for every admitted or rejected request.
func (g *Gate) finish(req core.Request, start time.Time, resp core.Response) core.Response {
	if g.config.SecurityHeaders {
		applyHeaders(resp, securityHeaders)
	}
	if g.metrics != nil {
		status := strconv.Itoa(resp.StatusCode())
		g.metrics.RequestsTotal.WithLabelValues(req.Method(), status).Inc()
		g.metrics.RequestDuration.WithLabelValues(req.Method(), status).
			Observe(time.Since(start).Seconds())
	}
	return resp
}

func (g *Gate) isAuthPath(path string) bool {
	for _, prefix := range g.config.AuthPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// needsCSRF reports whether the request must carry a valid CSRF token.
// Token-authenticated API routes are exempt; browser-form style routes are
// protected on every state-changing method.
func (g *Gate) needsCSRF(method, path string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
	default:
		return false
	}
	return g.config.APIPrefix == "" || !strings.HasPrefix(path, g.config.APIPrefix)
}

// scanRequest runs the threat scanner over every request input: query
// parameters, form fields, and JSON body leaves.
func (g *Gate) scanRequest(req core.Request) *threat.Finding {
	if finding := g.scanner.ScanValues(req.Query()); finding != nil {
		return finding
	}
	if finding := g.scanner.ScanValues(req.Form()); finding != nil {
		return finding
	}
	if isJSONRequest(req) {
		if finding := g.scanner.ScanJSON(req.BodyBytes()); finding != nil {
			return finding
		}
	}
	return nil
}

func isJSONRequest(req core.Request) bool {
	ct := core.Header(req, "Content-Type")
	return strings.Contains(ct, "application/json")
}

// csrfToken pulls the token from the header or, failing that, the form field
func csrfToken(req core.Request) string {
	if token := core.Header(req, "X-CSRF-Token"); token != "" {
		return token
	}
	return req.Form().Get("csrf_token")
}

func (g *Gate) accessDenied() core.Response {
	return core.NewJSONResponse(403, map[string]string{"error": "Access denied"})
}

func (g *Gate) rateLimited(retryAfter time.Duration) core.Response {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	resp := core.NewJSONResponse(429, map[string]any{
		"error":       "Rate limit exceeded",
		"retry_after": seconds,
	})
	resp.SetHeader("Retry-After", strconv.Itoa(seconds))
	return resp
}

func (g *Gate) invalidInput() core.Response {
	return core.NewJSONResponse(400, map[string]string{"error": "Invalid input"})
}

func (g *Gate) admitCheck(check string) {
	if g.metrics != nil {
		g.metrics.DecisionsTotal.WithLabelValues(check, "allowed").Inc()
	}
}

func (g *Gate) reject(check string, req core.Request, attrs ...any) {
	if g.metrics != nil {
		g.metrics.DecisionsTotal.WithLabelValues(check, "rejected").Inc()
		g.metrics.RejectionsTotal.WithLabelValues(check).Inc()
	}
	args := append([]any{
		"check", check,
		"method", req.Method(),
		"path", req.Path(),
	}, attrs...)
	g.logger.Warn("request rejected", args...)
}

// applyHeaders sets each header on the response, replacing existing values
func applyHeaders(resp core.Response, headers map[string]string) {
	h := resp.Headers()
	if h == nil {
		return
	}
	for key, value := range headers {
		h[key] = []string{value}
	}
}
