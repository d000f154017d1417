package observability

import (
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Request outcome labels recorded by the subscription services.
const (
	OutcomeActivated = "activated"
	OutcomeRequested = "requested"
	OutcomeAccepted  = "accepted"
	OutcomeRefused   = "refused"
	OutcomeExpired   = "expired"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	requestOutcomes *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clouddrive_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clouddrive_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clouddrive_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clouddrive_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clouddrive_plan_requests_total",
				Help: "Plan request outcomes by type.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordOperationDuration records the duration of a service operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequestOutcome increments the plan-request outcome counter.
func (m *Metrics) IncrRequestOutcome(outcome string) {
	m.requestOutcomes.WithLabelValues(outcome).Inc()
}

// GetRequestsSnapshot returns the current request-outcome counts for the
// GET /v1/metrics/requests endpoint.
// Note: Prometheus counters expose cumulative values since process start.
func (m *Metrics) GetRequestsSnapshot() *domain.RequestMetrics {
	activated := getCounterValue(m.requestOutcomes, OutcomeActivated)
	requested := getCounterValue(m.requestOutcomes, OutcomeRequested)
	accepted := getCounterValue(m.requestOutcomes, OutcomeAccepted)
	refused := getCounterValue(m.requestOutcomes, OutcomeRefused)
	expired := getCounterValue(m.requestOutcomes, OutcomeExpired)

	return &domain.RequestMetrics{
		Activated: int64(activated),
		Requested: int64(requested),
		Accepted:  int64(accepted),
		Refused:   int64(refused),
		Expired:   int64(expired),
		Total:     int64(activated + requested + accepted + refused + expired),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
