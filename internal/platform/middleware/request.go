package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"screening/internal/platform/metrics"
	"screening/pkg/requestcontext"
)

// RequestIDHeader carries the correlation id in and out.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestID reuses a caller supplied X-Request-ID or mints one, and stamps
// the request time used by services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Instrument logs each request and records HTTP metrics against the chi
// route pattern so path parameters do not explode label cardinality.
func Instrument(logger *slog.Logger, m *metrics.HTTP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.Observe(route, r.Method, strconv.Itoa(status), elapsed.Seconds())

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"request_id", requestcontext.RequestID(r.Context()),
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}
