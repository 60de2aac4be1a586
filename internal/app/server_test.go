package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerStartStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gatekeeper.Server.Host = "127.0.0.1"
	cfg.Gatekeeper.Server.Port = 0 // pick a free port

	srv, err := NewServer(cfg, testLogger())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestServerGateAccessor(t *testing.T) {
	srv := buildServer(t, testConfig(t))

	gate := srv.Gate()
	if gate == nil {
		t.Fatal("gate accessor returned nil")
	}
	if token := gate.IssueCSRF("user-1"); token == "" {
		t.Error("gate cannot issue tokens")
	}
}

func TestServerStopWithoutStart(t *testing.T) {
	srv := buildServer(t, testConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
}
