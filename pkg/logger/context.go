package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// NewContext stores l in ctx. Later calls to From on the returned context
// and its children return l.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// With attaches attributes to the request logger carried by ctx.
func With(ctx context.Context, args ...any) context.Context {
	return NewContext(ctx, From(ctx).With(args...))
}

// From falls back to the package logger when ctx carries none.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return LoggerWrapper()
}
