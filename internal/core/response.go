package core

import (
	"bytes"
	"encoding/json"
	"io"
)

// response is a simple Response implementation
type response struct {
	statusCode int
	headers    map[string][]string
	body       *bytes.Buffer
}

// NewResponse creates a new response for error cases or simple responses
func NewResponse(statusCode int, body []byte) *response {
	buf := new(bytes.Buffer)
	if body != nil {
		buf.Write(body)
	}
	return &response{
		statusCode: statusCode,
		headers:    make(map[string][]string),
		body:       buf,
	}
}

// NewJSONResponse creates a response with a JSON-encoded body and content type
func NewJSONResponse(statusCode int, v any) *response {
	body, err := json.Marshal(v)
	if err != nil {
		// Marshal of the fixed rejection payloads cannot fail; fall back to
		// an empty body rather than panicking on exotic callers.
		body = nil
	}
	resp := NewResponse(statusCode, body)
	resp.headers["Content-Type"] = []string{"application/json"}
	return resp
}

// SetHeader sets a response header, replacing any existing values
func (r *response) SetHeader(key, value string) {
	r.headers[key] = []string{value}
}

func (r *response) StatusCode() int              { return r.statusCode }
func (r *response) Headers() map[string][]string { return r.headers }
func (r *response) Body() io.ReadCloser          { return io.NopCloser(bytes.NewReader(r.body.Bytes())) }
