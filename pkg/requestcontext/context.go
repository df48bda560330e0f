// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values set by middleware and read by services.
//
//	requestID := requestcontext.RequestID(ctx)
//	operator := requestcontext.Operator(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	operatorKey    struct{}
	requestTimeKey struct{}
)

// RequestID returns the request correlation id, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Operator returns the authenticated subject that triggered the request, or "".
func Operator(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey{}).(string); ok {
		return v
	}
	return ""
}

func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

// Now returns the request-scoped time, falling back to time.Now when the
// middleware did not run.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
