// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the service's Prometheus instruments. Create one per
// process with NewMetrics and share it; instruments are registered on a
// private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	enrichmentsTotal   *prometheus.CounterVec
	enrichmentDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	cacheOpsTotal *prometheus.CounterVec

	maintenanceRunsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all instruments.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		enrichmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlink_enrichments_total",
			Help: "Enrichment pipeline runs by outcome (ok, degraded, rejected).",
		}, []string{"outcome"}),
		enrichmentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wishlink_enrichment_duration_seconds",
			Help:    "Time spent in the enrichment pipeline.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"outcome"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlink_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wishlink_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlink_cache_ops_total",
			Help: "Product cache lookups by result (hit, miss) and stores.",
		}, []string{"op"}),
		maintenanceRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlink_maintenance_runs_total",
			Help: "Scheduled maintenance job runs by job and result.",
		}, []string{"job", "result"}),
	}
}

// ObserveEnrichment records one pipeline run.
func (m *Metrics) ObserveEnrichment(outcome string, elapsed time.Duration) {
	m.enrichmentsTotal.WithLabelValues(outcome).Inc()
	m.enrichmentDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveCache records a cache operation: "hit", "miss" or "store".
func (m *Metrics) ObserveCache(op string) {
	m.cacheOpsTotal.WithLabelValues(op).Inc()
}

// ObserveMaintenance records a scheduled job run.
func (m *Metrics) ObserveMaintenance(job, result string) {
	m.maintenanceRunsTotal.WithLabelValues(job, result).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
