package core

import (
	"net"
	"strings"
)

// ClientIP resolves the client address a request should be keyed on. When
// trustForwardedFor is set, the first hop of X-Forwarded-For wins (the
// original client behind a trusted proxy); otherwise the transport address
// is used with its port stripped.
func ClientIP(req Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := Header(req, "X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}

	addr := strings.TrimSpace(req.RemoteAddr())
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}
