package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds telemetry configuration
type Config struct {
	Enabled bool
	Service string
	Version string

	// Endpoint is the OTLP/HTTP collector endpoint. Empty uses the
	// exporter default.
	Endpoint string
	Headers  map[string]string

	// SampleRate in (0,1) enables ratio sampling; anything else samples
	// every trace.
	SampleRate float64
}

// Telemetry manages OpenTelemetry providers
type Telemetry struct {
	config     Config
	tracer     trace.Tracer
	meter      metric.Meter
	shutdown   []func(context.Context) error
	resource   *resource.Resource
	propagator propagation.TextMapPropagator
}

// New creates a new telemetry instance. Metrics are exported through the
// given Prometheus registerer so they appear on the management /metrics
// endpoint alongside the native collectors.
func New(config Config, registerer promclient.Registerer) (*Telemetry, error) {
	t := &Telemetry{
		config:   config,
		shutdown: make([]func(context.Context) error, 0),
	}

	if !config.Enabled {
		// Return no-op telemetry
		t.tracer = otel.GetTracerProvider().Tracer("gatekeeper")
		t.meter = otel.GetMeterProvider().Meter("gatekeeper")
		t.propagator = propagation.NewCompositeTextMapPropagator()
		return t, nil
	}

	if err := t.initResource(); err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := t.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if registerer == nil {
		registerer = promclient.DefaultRegisterer
	}
	if err := t.initMetrics(registerer); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	t.propagator = propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(t.propagator)

	return t, nil
}

// initResource creates the OpenTelemetry resource
func (t *Telemetry) initResource() error {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(t.config.Service),
		semconv.ServiceVersion(t.config.Version),
	}

	resource, err := resource.New(
		context.Background(),
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	t.resource = resource
	return nil
}

// initTracing initializes the tracing provider
func (t *Telemetry) initTracing() error {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithTimeout(time.Second * 30),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
			MaxElapsedTime:  time.Minute,
		}),
	}

	if t.config.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(t.config.Endpoint))
	}

	if len(t.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(t.config.Headers))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	if t.config.SampleRate > 0 && t.config.SampleRate < 1 {
		sampler = sdktrace.TraceIDRatioBased(t.config.SampleRate)
	} else {
		sampler = sdktrace.AlwaysSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(t.resource),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	t.tracer = tp.Tracer("gatekeeper")
	t.shutdown = append(t.shutdown, tp.Shutdown)

	return nil
}

// initMetrics initializes the metrics provider backed by the Prometheus
// registry
func (t *Telemetry) initMetrics(registerer promclient.Registerer) error {
	exporter, err := prometheus.New(prometheus.WithRegisterer(registerer))
	if err != nil {
		return fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(t.resource),
	)

	otel.SetMeterProvider(mp)
	t.meter = mp.Meter("gatekeeper")
	t.shutdown = append(t.shutdown, mp.Shutdown)

	return nil
}

// Tracer returns the tracer
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Meter returns the meter
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// Propagator returns the propagator
func (t *Telemetry) Propagator() propagation.TextMapPropagator {
	return t.propagator
}

// Shutdown gracefully shuts down telemetry providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// StartSpan starts a new span with common attributes
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}
