package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jh125486/rubricscore/pkg/contextlog"
)

// ResponseWriter wraps http.ResponseWriter to capture the status code
type ResponseWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader captures the status code and writes it to the underlying ResponseWriter
func (rw *ResponseWriter) WriteHeader(code int) {
	rw.Status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logging logs each request after it completes. Server errors log at error
// level, client errors at warn.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		rw := &ResponseWriter{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rw, r)

		clientIP := r.RemoteAddr
		if realIP, ok := ctx.Value(RealIPKey).(string); ok && realIP != "" {
			clientIP = realIP
		}

		level := slog.LevelInfo
		switch {
		case rw.Status >= http.StatusInternalServerError:
			level = slog.LevelError
		case rw.Status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		contextlog.From(ctx).LogAttrs(ctx, level, "HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.Status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", clientIP),
		)
	})
}
