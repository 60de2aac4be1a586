package telemetry

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gatekeeper/internal/core"
)

func testRequest() core.Request {
	return core.NewRequest("req-1", http.MethodGet, "/api/v1/items", "/api/v1/items",
		"192.0.2.1:4000", nil, nil, nil, nil, context.Background())
}

func TestDisabledTelemetryIsNoop(t *testing.T) {
	tel, err := New(Config{Enabled: false}, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, span := tel.StartSpan(context.Background(), "test")
	defer span.End()

	if got := ExtractTraceID(ctx); got != "" {
		t.Errorf("trace id = %q, want empty for no-op tracer", got)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestMiddlewareRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	tel, err := New(Config{
		Enabled: true,
		Service: "gatekeeper-test",
		Version: "0.0.1",
	}, registry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		// No collector is listening, so flushing spans may fail.
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = tel.Shutdown(ctx)
	}()

	called := false
	handler := func(ctx context.Context, req core.Request) (core.Response, error) {
		called = true
		if ExtractTraceID(ctx) == "" {
			t.Error("handler context has no active span")
		}
		return core.NewResponse(http.StatusOK, nil), nil
	}

	mw, err := NewMiddleware(tel)
	if err != nil {
		t.Fatalf("NewMiddleware: %v", err)
	}

	resp, err := mw.Wrap()(handler)(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("wrapped handler: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode())
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "gatekeeper_requests") {
			found = true
			break
		}
	}
	if !found {
		t.Error("request counter not exported through prometheus bridge")
	}
}
