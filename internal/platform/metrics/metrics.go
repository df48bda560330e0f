package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP holds request-level Prometheus metrics shared by all routes.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP creates and registers HTTP metrics with the default registerer.
func NewHTTP() *HTTP {
	return NewHTTPWith(prometheus.DefaultRegisterer)
}

// NewHTTPWith registers HTTP metrics on reg, for tests that need isolation.
func NewHTTPWith(reg prometheus.Registerer) *HTTP {
	f := promauto.With(reg)
	return &HTTP{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code",
		}, []string{"route", "method", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screening_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Observe records one completed request.
func (m *HTTP) Observe(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, status).Inc()
	m.Duration.WithLabelValues(route, method).Observe(seconds)
}
