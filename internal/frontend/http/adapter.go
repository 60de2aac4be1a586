package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gatekeeper/internal/core"
	gkerrors "gatekeeper/pkg/errors"
)

// DefaultMaxBodyBytes bounds how much request body is buffered for
// admission scanning
const DefaultMaxBodyBytes = 1 << 20

// Config holds HTTP adapter configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	TLS          *TLSConfig
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// Adapter handles HTTP requests. It buffers each request body once so the
// admission checks can scan it and the business handler can still read it.
type Adapter struct {
	config  Config
	server  *http.Server
	handler core.Handler
	reqNum  atomic.Uint64
	logger  *slog.Logger
}

// New creates a new HTTP adapter
func New(cfg Config, handler core.Handler) *Adapter {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Adapter{
		config:  cfg,
		handler: handler,
		logger:  slog.Default().With("component", "http"),
	}
}

// Start starts the HTTP server
func (a *Adapter) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)

	a.server = &http.Server{
		Addr:         addr,
		Handler:      a,
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	a.logger.Info("starting server", "addr", addr)

	go func() {
		var err error
		if a.config.TLS != nil && a.config.TLS.Enabled {
			a.logger.Info("starting TLS server", "cert", a.config.TLS.CertFile)
			err = a.server.ListenAndServeTLS(a.config.TLS.CertFile, a.config.TLS.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			a.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the server
func (a *Adapter) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}

	a.logger.Info("stopping server", "requests", a.reqNum.Load())
	return a.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.reqNum.Add(1)
	reqID := uuid.NewString()

	// Copy headers
	headers := make(map[string][]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = v
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, a.config.MaxBodyBytes))
	if err != nil {
		a.logger.Error("failed to read request body", "id", reqID, "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	r.Body.Close()

	form := parseForm(r.Header.Get("Content-Type"), body)

	req := core.NewRequest(reqID, r.Method, r.URL.Path, r.URL.String(), r.RemoteAddr,
		headers, r.URL.Query(), form, body, r.Context())

	resp, err := a.handler(r.Context(), req)
	if err != nil {
		a.handleError(w, reqID, err)
		return
	}

	// Write response
	for k, values := range resp.Headers() {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}

	w.WriteHeader(resp.StatusCode())

	if respBody := resp.Body(); respBody != nil {
		defer respBody.Close()
		if _, err := io.Copy(w, respBody); err != nil {
			a.logger.Error("failed to copy response body",
				"error", err,
				"request_id", reqID,
				"path", req.Path())
			// Don't return error as headers are already sent
		}
	}
}

// parseForm decodes a urlencoded body. Undecodable or non-form bodies yield
// empty values rather than an error; the raw bytes still reach the scanner.
func parseForm(contentType string, body []byte) url.Values {
	if !strings.Contains(contentType, "application/x-www-form-urlencoded") {
		return nil
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil
	}
	return form
}

// handleError handles errors by mapping them to appropriate HTTP responses
func (a *Adapter) handleError(w http.ResponseWriter, reqID string, err error) {
	var gkErr *gkerrors.Error
	var statusCode int
	var message string

	if errors.As(err, &gkErr) {
		// Structured error with proper status code
		statusCode = gkErr.HTTPStatusCode()
		message = gkErr.Message
		a.logger.Error("request failed",
			"id", reqID,
			"type", gkErr.Type,
			"error", gkErr.Error(),
			"details", gkErr.Details)
	} else {
		// Generic error
		statusCode = http.StatusInternalServerError
		message = "Internal Server Error"
		a.logger.Error("request failed", "id", reqID, "error", err)
	}

	http.Error(w, message, statusCode)
}
