package logging

import (
	"context"
	"io"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying the logger
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a discarding logger when none is set
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return NewWithOutput(ErrorLevel+1, io.Discard)
}
