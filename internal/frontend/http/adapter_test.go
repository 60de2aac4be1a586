package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gatekeeper/internal/core"
	gkerrors "gatekeeper/pkg/errors"
)

func TestServeHTTPBuffersRequest(t *testing.T) {
	var seen core.Request
	handler := func(ctx context.Context, req core.Request) (core.Response, error) {
		seen = req
		// The handler can still read the body after admission scanned it.
		data, err := io.ReadAll(req.Body())
		if err != nil {
			t.Errorf("reading buffered body: %v", err)
		}
		if string(data) != "field=value&csrf_token=tok" {
			t.Errorf("body = %q", data)
		}
		resp := core.NewJSONResponse(201, map[string]string{"status": "created"})
		return resp, nil
	}

	adapter := New(Config{}, handler)
	server := httptest.NewServer(adapter)
	defer server.Close()

	resp, err := http.Post(server.URL+"/submit?q=hello", "application/x-www-form-urlencoded",
		strings.NewReader("field=value&csrf_token=tok"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if seen.Query().Get("q") != "hello" {
		t.Errorf("query q = %q, want hello", seen.Query().Get("q"))
	}
	if seen.Form().Get("csrf_token") != "tok" {
		t.Errorf("form csrf_token = %q, want tok", seen.Form().Get("csrf_token"))
	}
}

func TestServeHTTPErrorMapping(t *testing.T) {
	handler := func(ctx context.Context, req core.Request) (core.Response, error) {
		return nil, gkerrors.NewError(gkerrors.ErrorTypeRateLimit, "rate limit exceeded")
	}

	adapter := New(Config{}, handler)
	server := httptest.NewServer(adapter)
	defer server.Close()

	resp, err := http.Get(server.URL + "/anything")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 429 {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestServeHTTPGenericError(t *testing.T) {
	handler := func(ctx context.Context, req core.Request) (core.Response, error) {
		return nil, io.ErrUnexpectedEOF
	}

	adapter := New(Config{}, handler)
	server := httptest.NewServer(adapter)
	defer server.Close()

	resp, err := http.Get(server.URL + "/anything")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 500 {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}
