package testutil

import (
	"context"
	"net/http"
	"time"

	"screening/pkg/requestcontext"
)

// WithOperator adds an authenticated operator to the request context.
// This simulates what the auth middleware does for authenticated requests.
func WithOperator(req *http.Request, operator string) *http.Request {
	return req.WithContext(requestcontext.WithOperator(req.Context(), operator))
}

// WithRequest adds a request ID and a fixed request time.
func WithRequest(req *http.Request, requestID string, now time.Time) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
