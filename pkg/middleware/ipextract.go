package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/tomasen/realip"
)

type contextKey string

// RealIPKey is the context key for storing the real client IP address
const RealIPKey contextKey = "real-ip"

// StoreRealIP extracts the real client IP and stores it in request context.
func StoreRealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// realip never returns empty
		ctx := context.WithValue(r.Context(), RealIPKey, realip.RealIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPExtractable is satisfied by connect requests.
type IPExtractable interface {
	Header() http.Header
	Peer() connect.Peer
}

const (
	UnknownIP            = "unknown"
	XFFHeader            = "X-Forwarded-For"
	XRealIPHeader        = "X-Real-IP"
	CFConnectingIPHeader = "CF-Connecting-IP"
)

// ClientIP returns the caller's address for audit logging. It prefers the
// value stored by StoreRealIP, then proxy headers, then the peer address.
func ClientIP(ctx context.Context, req IPExtractable) string {
	if ip, ok := ctx.Value(RealIPKey).(string); ok && ip != "" && ip != UnknownIP {
		return ip
	}

	headers := req.Header()
	if first, _, _ := strings.Cut(headers.Get(XFFHeader), ","); strings.TrimSpace(first) != "" {
		if ip := strings.TrimSpace(first); ip != UnknownIP {
			return ip
		}
	}
	for _, h := range []string{XRealIPHeader, CFConnectingIPHeader} {
		if ip := headers.Get(h); ip != "" && ip != UnknownIP {
			return ip
		}
	}

	if addr := req.Peer().Addr; addr != "" {
		if ip, _, err := net.SplitHostPort(addr); err == nil {
			return ip
		}
		return addr
	}

	return UnknownIP
}
