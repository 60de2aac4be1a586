package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"gatekeeper/internal/core"
)

// Middleware wraps handlers with tracing and OpenTelemetry metrics
type Middleware struct {
	telemetry *Telemetry

	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

// NewMiddleware creates a new telemetry middleware
func NewMiddleware(telemetry *Telemetry) (*Middleware, error) {
	meter := telemetry.Meter()

	requests, err := meter.Int64Counter("gatekeeper.requests",
		metric.WithDescription("Requests seen by the admission layer"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram("gatekeeper.request.duration",
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	active, err := meter.Int64UpDownCounter("gatekeeper.requests.active",
		metric.WithDescription("Requests currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active gauge: %w", err)
	}

	return &Middleware{
		telemetry: telemetry,
		requests:  requests,
		duration:  duration,
		active:    active,
	}, nil
}

// Wrap returns a middleware that traces every request through the chain
func (m *Middleware) Wrap() core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, req core.Request) (core.Response, error) {
			ctx, span := m.telemetry.StartServerSpan(ctx, req)

			m.active.Add(ctx, 1)
			defer m.active.Add(ctx, -1)

			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			attrs := metric.WithAttributes(
				attribute.String("method", req.Method()),
				attribute.Int("status", statusOf(resp, err)),
			)
			m.requests.Add(ctx, 1, attrs)
			m.duration.Record(ctx, elapsed.Seconds(), attrs)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
				return resp, err
			}

			EndServerSpan(span, statusOf(resp, nil))
			return resp, nil
		}
	}
}

func statusOf(resp core.Response, err error) int {
	if err != nil {
		return 500
	}
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}
