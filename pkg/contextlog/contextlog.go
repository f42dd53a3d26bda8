// Package contextlog carries a *slog.Logger through context.Context.
package contextlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type loggerKey struct{}

const DefaultLevel = slog.LevelInfo

// Format selects the slog handler used by New.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New builds a logger at rawLevel writing to stderr, installs it as the
// slog default and returns ctx carrying it.
func New(ctx context.Context, rawLevel string, format Format, attrs ...slog.Attr) context.Context {
	return newWithWriter(ctx, os.Stderr, rawLevel, format, attrs...)
}

func newWithWriter(ctx context.Context, w io.Writer, rawLevel string, format Format, attrs ...slog.Attr) context.Context {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(rawLevel)); err != nil {
		slog.Default().WarnContext(ctx, "Invalid level, falling back to default",
			slog.String("raw_level", rawLevel),
			slog.String("default", DefaultLevel.String()),
			slog.Any("error", err),
		)
		logLevel = DefaultLevel
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler
	switch Format(strings.ToLower(string(format))) {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}

	l := slog.New(h)
	if len(attrs) > 0 {
		anyAttrs := make([]any, len(attrs))
		for i := range attrs {
			anyAttrs[i] = attrs[i]
		}
		l = l.With(anyAttrs...)
	}

	slog.SetDefault(l)

	return With(ctx, l)
}

// With returns a new context with the given logger attached.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From retrieves the logger from the context.
// If no logger is found, it returns the default logger.
func From(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

// DiscardLogger returns a logger that discards all output.
// Useful for tests to suppress logging.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
