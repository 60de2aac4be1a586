// Package middleware holds the generic handler middleware that is not part
// of the admission chain itself.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"gatekeeper/internal/core"
	gkerrors "gatekeeper/pkg/errors"
)

// Chain combines multiple middleware
func Chain(middlewares ...core.Middleware) core.Middleware {
	return func(next core.Handler) core.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Logging adds request logging
func Logging(logger *slog.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, req core.Request) (core.Response, error) {
			start := time.Now()

			resp, err := next(ctx, req)

			attrs := []any{
				"id", req.ID(),
				"method", req.Method(),
				"path", req.Path(),
				"duration", time.Since(start),
			}
			if resp != nil {
				attrs = append(attrs, "status", resp.StatusCode())
			}
			if err != nil {
				attrs = append(attrs, "error", err)
				logger.Error("request failed", attrs...)
			} else {
				logger.Info("request", attrs...)
			}

			return resp, err
		}
	}
}

// RecoveryConfig holds recovery middleware configuration
type RecoveryConfig struct {
	// StackTrace enables stack trace logging
	StackTrace bool
	// PanicHandler is called when a panic occurs (optional)
	PanicHandler func(ctx context.Context, recovered any, stack []byte)
}

// Recovery converts handler panics into an internal error response
func Recovery(config RecoveryConfig, logger *slog.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, req core.Request) (resp core.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()

					logger.Error("panic recovered",
						"panic", r,
						"path", req.Path(),
						"method", req.Method(),
					)
					if config.StackTrace {
						logger.Error("stack trace", "stack", string(stack))
					}

					if config.PanicHandler != nil {
						config.PanicHandler(ctx, r, stack)
					}

					err = &gkerrors.Error{
						Type:    gkerrors.ErrorTypeInternal,
						Message: "Internal server error",
						Details: map[string]interface{}{
							"panic": fmt.Sprintf("%v", r),
						},
					}
				}
			}()

			return next(ctx, req)
		}
	}
}

// DefaultRecovery creates recovery middleware with stack traces enabled
func DefaultRecovery(logger *slog.Logger) core.Middleware {
	return Recovery(RecoveryConfig{StackTrace: true}, logger)
}
