package middleware_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/middleware"
)

// syncBuffer is written by the handler goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		status     int
		realIP     string
		remoteAddr string
		want       []string
	}{
		{
			name:       "success_logs_info",
			method:     http.MethodPost,
			path:       "/rubricscore.v1.RubricService/GetResult",
			status:     http.StatusOK,
			realIP:     "192.168.1.100",
			remoteAddr: "127.0.0.1:54321",
			want:       []string{"level=INFO", "method=POST", "path=/rubricscore.v1.RubricService/GetResult", "status=200", "client_ip=192.168.1.100"},
		},
		{
			name:       "client_error_logs_warn",
			method:     http.MethodGet,
			path:       "/missing",
			status:     http.StatusNotFound,
			realIP:     "172.16.0.1",
			remoteAddr: "127.0.0.1:54323",
			want:       []string{"level=WARN", "status=404"},
		},
		{
			name:       "server_error_logs_error",
			method:     http.MethodGet,
			path:       "/boom",
			status:     http.StatusInternalServerError,
			remoteAddr: "127.0.0.1:54324",
			want:       []string{"level=ERROR", "status=500"},
		},
		{
			name:       "remote_addr_without_real_ip",
			method:     http.MethodGet,
			path:       "/health",
			status:     http.StatusOK,
			remoteAddr: "192.168.1.200:12345",
			want:       []string{"client_ip=192.168.1.200:12345"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf syncBuffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			req.RemoteAddr = tt.remoteAddr
			ctx := contextlog.With(req.Context(), logger)
			if tt.realIP != "" {
				ctx = context.WithValue(ctx, middleware.RealIPKey, tt.realIP)
			}

			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "ok")
			})

			rr := httptest.NewRecorder()
			middleware.Logging(next).ServeHTTP(rr, req.WithContext(ctx))

			assert.Equal(t, tt.status, rr.Code)
			out := buf.String()
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := &middleware.ResponseWriter{ResponseWriter: rec, Status: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, rw.Status)
	assert.Same(t, rec, rw.Unwrap())
}
