// Package iputil extracts the client IP from request attributes.
package iputil

import (
	"net"
	"strings"

	"github.com/aviary-platform/auth-service/internal/domain/models"
)

// ClientIP returns the caller's address: the first X-Forwarded-For entry
// when present, otherwise the direct peer address with any port stripped.
func ClientIP(info models.ClientInfo) string {
	if info.ForwardedFor != "" {
		first := info.ForwardedFor
		if i := strings.IndexByte(first, ','); i >= 0 {
			first = first[:i]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(info.RemoteAddr); err == nil {
		return host
	}
	return info.RemoteAddr
}
