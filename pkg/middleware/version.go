package middleware

import "net/http"

// VersionHeader carries the server build so clients can warn on mismatch.
const VersionHeader = "X-Version"

// Version returns a middleware that adds VersionHeader to all responses.
func Version(version string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(VersionHeader, version)
			next.ServeHTTP(w, r)
		})
	}
}

// Chain wraps h so that mws run in the order given.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
