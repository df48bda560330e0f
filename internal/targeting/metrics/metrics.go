package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for targeting runs. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Stage latency: geocode, catchment, eligibility, allocate, commit
	StageLatency *prometheus.HistogramVec

	// Run outcomes: completed, partial, shortfall, failed
	RunOutcome *prometheus.CounterVec

	CatchmentUnits     prometheus.Histogram
	AreaPagesRead      prometheus.Counter
	QueryFailures      prometheus.Counter
	ResidentsCommitted *prometheus.CounterVec
	GeocodeCache       *prometheus.CounterVec
	GeocoderBreaker    prometheus.Gauge
}

// New registers targeting metrics with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screening_targeting_stage_duration_seconds",
			Help:    "Duration of each targeting run stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),

		RunOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_targeting_runs_total",
			Help: "Targeting runs by outcome",
		}, []string{"outcome"}),

		CatchmentUnits: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "screening_targeting_catchment_units",
			Help:    "Number of area units inside a resolved catchment",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),

		AreaPagesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "screening_targeting_area_pages_read_total",
			Help: "Area unit reference pages read while resolving catchments",
		}),

		QueryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "screening_targeting_population_query_failures_total",
			Help: "Area unit population queries that failed or timed out",
		}),

		ResidentsCommitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_targeting_residents_committed_total",
			Help: "Resident reservation updates by result",
		}, []string{"result"}),

		GeocodeCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screening_geocode_cache_total",
			Help: "Geocode cache lookups by result",
		}, []string{"result"}),

		GeocoderBreaker: f.NewGauge(prometheus.GaugeOpts{
			Name: "screening_geocoder_circuit_open",
			Help: "Geocoder circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveCatchmentUnits(n int) {
	if m != nil {
		m.CatchmentUnits.Observe(float64(n))
	}
}

func (m *Metrics) IncrementPagesRead() {
	if m != nil {
		m.AreaPagesRead.Inc()
	}
}

func (m *Metrics) AddQueryFailures(n int) {
	if m != nil && n > 0 {
		m.QueryFailures.Add(float64(n))
	}
}

// AddCommitted records resident update results.
func (m *Metrics) AddCommitted(succeeded, failed int) {
	if m == nil {
		return
	}
	m.ResidentsCommitted.WithLabelValues("succeeded").Add(float64(succeeded))
	m.ResidentsCommitted.WithLabelValues("failed").Add(float64(failed))
}

// IncrementCache records a cache lookup: hit, miss, or error.
func (m *Metrics) IncrementCache(result string) {
	if m != nil {
		m.GeocodeCache.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.GeocoderBreaker.Set(1)
	} else {
		m.GeocoderBreaker.Set(0)
	}
}
