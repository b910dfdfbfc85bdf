// Package logger provides the structured logging interface used across glvault.
package logger

import "context"

// Fields is a set of key-value pairs attached to a single log line.
type Fields map[string]interface{}

// Logger is the structured logging contract every component depends on.
// Concrete implementations live in internal/infrastructure/monitoring (zap,
// production) and this package (no-op, tests).
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)

	// WithFields returns a derived logger that always includes fields.
	WithFields(fields Fields) Logger

	// ForContext returns the logger attached to ctx, if any, else the receiver.
	ForContext(ctx context.Context) Logger
}
