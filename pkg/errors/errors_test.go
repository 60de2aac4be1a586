package errors

import (
	stderrors "errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewError(ErrorTypeRateLimit, "rate limit exceeded")
		want := "rate_limit: rate limit exceeded"
		if err.Error() != want {
			t.Fatalf("expected %q, got %q", want, err.Error())
		}
	})

	t.Run("with cause", func(t *testing.T) {
		cause := stderrors.New("bucket empty")
		err := NewError(ErrorTypeRateLimit, "rate limit exceeded").WithCause(cause)
		want := "rate_limit: rate limit exceeded: bucket empty"
		if err.Error() != want {
			t.Fatalf("expected %q, got %q", want, err.Error())
		}
		if !stderrors.Is(err, cause) {
			t.Fatal("expected cause to be in the chain")
		}
	})
}

func TestErrorIs(t *testing.T) {
	err := NewError(ErrorTypeBlocked, "access denied")

	if !Is(err, NewError(ErrorTypeBlocked, "anything")) {
		t.Fatal("expected errors with the same type to match")
	}
	if Is(err, NewError(ErrorTypeCSRF, "access denied")) {
		t.Fatal("expected errors with different types not to match")
	}
}

func TestErrorAs(t *testing.T) {
	wrapped := Wrap(NewError(ErrorTypeThreat, "injection detected"), "scan")

	var e *Error
	if !As(wrapped, &e) {
		t.Fatal("expected As to find the structured error")
	}
	if e.Type != ErrorTypeThreat {
		t.Fatalf("expected threat type, got %s", e.Type)
	}
}

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		errType ErrorType
		want    int
	}{
		{ErrorTypeRateLimit, 429},
		{ErrorTypeBlocked, 403},
		{ErrorTypeCSRF, 403},
		{ErrorTypeThreat, 400},
		{ErrorTypeBadRequest, 400},
		{ErrorTypeNotFound, 404},
		{ErrorTypeTimeout, 408},
		{ErrorTypeInternal, 500},
	}

	for _, c := range cases {
		t.Run(string(c.errType), func(t *testing.T) {
			got := NewError(c.errType, "x").HTTPStatusCode()
			if got != c.want {
				t.Fatalf("expected %d, got %d", c.want, got)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Fatal("expected nil when wrapping nil")
	}
}

func TestWithDetail(t *testing.T) {
	err := NewError(ErrorTypeRateLimit, "rate limit exceeded").
		WithDetail("scope", "ip").
		WithDetail("key", "1.2.3.4")

	if err.Details["scope"] != "ip" {
		t.Fatalf("expected scope detail, got %v", err.Details["scope"])
	}
	if err.Details["key"] != "1.2.3.4" {
		t.Fatalf("expected key detail, got %v", err.Details["key"])
	}
}
