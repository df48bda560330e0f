package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening/internal/platform/metrics"
	"screening/pkg/requestcontext"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func operatorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.Operator(r.Context())))
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("missing header is rejected", func(t *testing.T) {
		h := RequireAuth(stubValidator{}, discard)(operatorEcho())
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `"unauthorized"`)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		h := RequireAuth(stubValidator{err: errors.New("bad signature")}, discard)(operatorEcho())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token sets operator", func(t *testing.T) {
		h := RequireAuth(stubValidator{claims: &JWTClaims{Subject: "ops-1"}}, discard)(operatorEcho())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ops-1", rr.Body.String())
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "caller-id", seen)
	assert.Equal(t, "caller-id", rr.Header().Get(RequestIDHeader))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "caller-id", seen)
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTPWith(reg)

	r := chi.NewRouter()
	r.Use(Instrument(discard, m))
	r.Get("/clinics/{clinicID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clinics/C123", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	families, err := reg.Gather()
	require.NoError(t, err)
	var routes []string
	for _, mf := range families {
		if mf.GetName() != "screening_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" {
					routes = append(routes, label.GetValue())
				}
			}
			assert.Equal(t, 1.0, metric.GetCounter().GetValue())
		}
	}
	assert.Equal(t, []string{"/clinics/{clinicID}"}, routes)
}
