package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector glvault exports: relay outcome
// counts and latency, quota rejections, and storage backend failures.
type Metrics struct {
	RelayRequests   *prometheus.CounterVec
	RelayLatency    *prometheus.HistogramVec
	QuotaRejections *prometheus.CounterVec
	BackendErrors   *prometheus.CounterVec
	ActiveRequests  *prometheus.GaugeVec
}

// NewMetrics creates and registers glvault's Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RelayRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glvault_relay_requests_total",
				Help: "Total number of relay requests by alias and terminal status.",
			},
			[]string{"alias", "status"},
		),
		RelayLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glvault_relay_latency_ms",
				Help:    "Upstream relay latency in milliseconds.",
				Buckets: prometheus.ExponentialBuckets(5, 2, 12),
			},
			[]string{"alias"},
		),
		QuotaRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glvault_quota_rejections_total",
				Help: "Total number of requests rejected for exceeding quota.",
			},
			[]string{"alias"},
		),
		BackendErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glvault_backend_errors_total",
				Help: "Total number of storage backend errors by operation.",
			},
			[]string{"backend", "operation"},
		),
		ActiveRequests: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "glvault_active_requests",
				Help: "Number of relay requests currently in flight.",
			},
			[]string{"path", "method"},
		),
	}
}

// RecordRelay records the terminal outcome and latency of one relay call.
func (m *Metrics) RecordRelay(alias, status string, latency time.Duration) {
	m.RelayRequests.WithLabelValues(alias, status).Inc()
	m.RelayLatency.WithLabelValues(alias).Observe(float64(latency.Milliseconds()))
}

// RecordQuotaRejection records a 429 due to quota exhaustion.
func (m *Metrics) RecordQuotaRejection(alias string) {
	m.QuotaRejections.WithLabelValues(alias).Inc()
}

// RecordBackendError records a storage backend failure for operation (get/set/delete/scan).
func (m *Metrics) RecordBackendError(backend, operation string) {
	m.BackendErrors.WithLabelValues(backend, operation).Inc()
}

// ActiveRequestsInc marks one more in-flight request for path/method.
func (m *Metrics) ActiveRequestsInc(path, method string) {
	m.ActiveRequests.WithLabelValues(path, method).Inc()
}

// ActiveRequestsDec marks one fewer in-flight request for path/method.
func (m *Metrics) ActiveRequestsDec(path, method string) {
	m.ActiveRequests.WithLabelValues(path, method).Dec()
}
