// Package identity resolves the authenticated user behind a request. The
// admission layer never enforces authentication itself; it only needs
// "current user id or none" to pick the right rate-limit scope.
package identity

import (
	"context"

	"gatekeeper/internal/core"
)

// Provider resolves the authenticated identity of a request
type Provider interface {
	// UserID returns the user id carried by the request, or ok=false when
	// the request is anonymous or the credential is invalid
	UserID(ctx context.Context, req core.Request) (string, bool)
}

// Anonymous is a Provider that never authenticates anyone
type Anonymous struct{}

// UserID always reports an anonymous request
func (Anonymous) UserID(ctx context.Context, req core.Request) (string, bool) {
	return "", false
}
