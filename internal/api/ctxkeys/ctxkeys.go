// Package ctxkeys holds the request context keys shared by the api,
// middleware and handlers packages. It is a leaf package so none of them
// import each other for a key.
package ctxkeys

import (
	"context"
	"log/slog"
)

// Key is the named type for all API context keys. context.Value compares
// type and value, so plain string keys from other packages never collide.
type Key string

const (
	// Logger is the request-scoped *slog.Logger injected by the access log
	// middleware.
	Logger Key = "logger"
)

// WithLogger stores a request-scoped logger.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, Logger, l)
}

// LoggerFrom returns the request logger, or fallback when none was stored.
func LoggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(Logger).(*slog.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
