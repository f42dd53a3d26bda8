package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/jh125486/rubricscore/pkg/api"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	mw "github.com/jh125486/rubricscore/pkg/middleware"
	"github.com/jh125486/rubricscore/pkg/storage"
)

const contentTypeHeader = "Content-Type"

// Config contains the configuration required to start the server.
type Config struct {
	Tokens  mw.Tokens
	Version string
	Port    string
	Storage storage.Storage
}

// tlsConfig configures TLS 1.2 with ciphers compatible with corporate proxies.
// This ensures compatibility with older corporate proxy infrastructure that may not support TLS 1.3.
func tlsConfig() *tls.Config {
	//#nosec:G402 // This is needed to get around proxies that don't support TLS 1.3
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		},
	}
}

// Handler builds the server's routes: the Connect rubric service and the
// results pages behind authentication, and an open health check.
func Handler(cfg Config) http.Handler {
	rubricServer := NewRubricServer(cfg.Storage)
	rubricPath, rubricHandler := api.NewRubricServiceHandler(rubricServer)

	common := []func(http.Handler) http.Handler{
		mw.RequestID,
		mw.Logging,
		mw.StoreRealIP,
		mw.Version(cfg.Version),
	}
	authed := slices.Concat(common, []func(http.Handler) http.Handler{mw.Auth(cfg.Tokens)})

	mux := http.NewServeMux()
	mux.Handle(rubricPath, mw.Chain(rubricHandler, authed...))
	mux.Handle("GET /assignments/{assignment}", mw.Chain(resultsPage(rubricServer), authed...))
	mux.Handle("GET /health", mw.Chain(http.HandlerFunc(health), common...))
	return mux
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(contentTypeHeader, "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Start initializes and runs the HTTP server on the configured port.
// The server is configured with TLS 1.2 for corporate proxy compatibility.
// It gracefully shuts down on context cancellation or when the listener returns an error.
func Start(ctx context.Context, cfg Config) error {
	logger := contextlog.From(ctx)
	logger.InfoContext(ctx, "Server will start on port", slog.String("port", cfg.Port))

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", ":"+cfg.Port)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		TLSConfig:         tlsConfig(),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	logger.InfoContext(ctx, "Connect HTTP server listening",
		slog.String("addr", lis.Addr().String()),
		slog.String("version", cfg.Version),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		// the original context is already cancelled
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return ctx.Err()
	}
}
