// Package clientip derives the key the rate limiters and request logger use
// for a caller.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is returned when the request carries no usable address.
const Unknown = "unknown"

// FromRequest returns the caller's IP in canonical form. chi's RealIP
// middleware runs first in the server, so RemoteAddr may already be a bare
// address taken from X-Real-IP or X-Forwarded-For rather than host:port.
func FromRequest(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	if addr == "" {
		return Unknown
	}
	return addr
}
