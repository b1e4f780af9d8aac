package internal

import (
	"context"
	"time"
)

type traceKey struct{}

const defaultTimeout = 5 * time.Second

// TraceIDFromContext returns the trace id set by the request id middleware,
// or "" outside a request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// WithTimeout bounds ctx by d, or by five seconds when d is not positive.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
