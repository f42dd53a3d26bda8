package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jh125486/rubricscore/pkg/contextlog"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the context key for storing the request ID
const RequestIDKey contextKey = "request-id"

// maxRequestIDLen bounds upstream IDs copied into logs and headers.
const maxRequestIDLen = 128

// RequestID adds a request ID to the context, the logger and the response.
// An upstream X-Request-ID is reused when it is short enough, otherwise a
// new UUID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = contextlog.With(ctx, contextlog.From(ctx).With(slog.String("request_id", requestID)))

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the ID stored by RequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
