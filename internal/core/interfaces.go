package core

import (
	"context"
	"io"
	"net/url"
)

// Request represents an incoming request
type Request interface {
	ID() string
	Method() string
	Path() string
	URL() string
	RemoteAddr() string
	Headers() map[string][]string
	// Query returns the parsed query parameters
	Query() url.Values
	// Form returns the parsed form fields for form-encoded bodies
	Form() url.Values
	// Body returns a fresh reader over the buffered request body. The body
	// is buffered once at the edge so guards can scan it and the handler
	// can still read it.
	Body() io.ReadCloser
	// BodyBytes returns the buffered request body
	BodyBytes() []byte
	Context() context.Context
}

// Response represents an outgoing response
type Response interface {
	StatusCode() int
	Headers() map[string][]string
	Body() io.ReadCloser
}

// Handler processes requests
type Handler func(context.Context, Request) (Response, error)

// Middleware wraps handlers
type Middleware func(Handler) Handler
