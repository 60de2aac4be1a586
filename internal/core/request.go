package core

import (
	"bytes"
	"context"
	"io"
	"net/url"
)

// request is a simple Request implementation
type request struct {
	id         string
	method     string
	path       string
	url        string
	remoteAddr string
	headers    map[string][]string
	query      url.Values
	form       url.Values
	body       []byte
	ctx        context.Context
}

// NewRequest creates a new request with a buffered body
func NewRequest(id, method, path, rawURL, remoteAddr string, headers map[string][]string, query, form url.Values, body []byte, ctx context.Context) Request {
	if headers == nil {
		headers = make(map[string][]string)
	}
	if query == nil {
		query = url.Values{}
	}
	if form == nil {
		form = url.Values{}
	}
	return &request{
		id:         id,
		method:     method,
		path:       path,
		url:        rawURL,
		remoteAddr: remoteAddr,
		headers:    headers,
		query:      query,
		form:       form,
		body:       body,
		ctx:        ctx,
	}
}

func (r *request) ID() string                   { return r.id }
func (r *request) Method() string               { return r.method }
func (r *request) Path() string                 { return r.path }
func (r *request) URL() string                  { return r.url }
func (r *request) RemoteAddr() string           { return r.remoteAddr }
func (r *request) Headers() map[string][]string { return r.headers }
func (r *request) Query() url.Values            { return r.query }
func (r *request) Form() url.Values             { return r.form }
func (r *request) BodyBytes() []byte            { return r.body }
func (r *request) Context() context.Context     { return r.ctx }

func (r *request) Body() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(r.body))
}

// Header returns the first value of a header, matching net/http's canonical
// key convention
func Header(req Request, key string) string {
	if vs, ok := req.Headers()[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
