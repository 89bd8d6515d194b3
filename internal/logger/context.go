package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// ContextWithLogger attaches a request-scoped logger to ctx.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger
// when none was attached.
func FromContext(ctx context.Context) *zap.Logger {
	l, ok := ctx.Value(contextKey{}).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}
	return l
}
