package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger returns ctx carrying l. Request handlers and batch runs
// use it to scope log lines to a request_id or run_id.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the scoped logger, or a no-op logger outside any scope.
func FromContext(ctx context.Context) *zap.Logger {
	return FromContextOr(ctx, nil)
}

// FromContextOr returns the scoped logger, falling back to def (or a no-op logger when def is nil).
func FromContextOr(ctx context.Context, def *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	if def != nil {
		return def
	}
	return zap.NewNop()
}

// With narrows the scoped logger (or def) by fields and stores the result back in ctx.
func With(ctx context.Context, def *zap.Logger, fields ...zap.Field) (context.Context, *zap.Logger) {
	l := FromContextOr(ctx, def).With(fields...)
	return ContextWithLogger(ctx, l), l
}
