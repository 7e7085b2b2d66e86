// Package logctx provides context-based logger injection and extraction.
//
// This package enables passing loggers through context.Context, allowing
// callers to inject enriched loggers with contextual fields (e.g., run_id,
// dataset) that automatically propagate through the call stack.
//
// Usage:
//
//	// At the top level, create a context with the base logger:
//	ctx := logctx.WithLogger(ctx, baseLogger)
//
//	// In functions, extract the logger:
//	logger := logctx.FromContext(ctx)
//
//	// To add contextual fields for a sub-operation:
//	childCtx := logctx.WithStr(ctx, "dataset", root)
package logctx

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// loggerKey is the private key type for storing loggers in context.
// Using a private type prevents collisions with other packages.
type loggerKey struct{}

var (
	defaultLogger     zerolog.Logger
	defaultLoggerOnce sync.Once
)

// DefaultLogger returns the process-wide default logger used when no
// context logger is available. This logger outputs JSON to stderr with
// timestamps.
func DefaultLogger() zerolog.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
	return defaultLogger
}

// WithLogger returns a new context with the given logger attached.
// The logger can be retrieved using FromContext.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context. If the context is nil
// or does not contain a logger, returns the default logger.
//
// This function never returns a zero-value logger or panics.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return DefaultLogger()
}

// WithStr returns a new context with a logger that has the specified string field added.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// NewConfiguredLogger creates a new logger writing to w (stderr in
// production). If debug is true, sets log level to Debug. If human is
// true, uses a human-friendly console writer instead of JSON.
func NewConfiguredLogger(w io.Writer, debug, human bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: w}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
