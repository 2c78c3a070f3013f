package metrics

import (
	"kiro-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks traffic to the upstream API and its auth service.
//
// Metrics:
//   - kirogate_gateway_upstream_attempts_total: HTTP attempts by endpoint and status
//   - kirogate_gateway_token_refreshes_total: token refreshes by method and result
type UpstreamMetrics struct {
	attempts  *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewUpstreamMetrics creates and registers upstream metrics with the provided registry.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempts_total",
				Help:      "Upstream HTTP attempts by endpoint and response status",
			},
			[]string{"endpoint", "status"},
		),

		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "token_refreshes_total",
				Help:      "Access-token refreshes by auth method and result",
			},
			[]string{"method", "result"},
		),
	}

	registry.MustRegister(um.attempts, um.refreshes)

	return um
}

// RecordAttempt records one upstream attempt.
func (um *UpstreamMetrics) RecordAttempt(endpoint, status string) {
	um.attempts.WithLabelValues(endpoint, status).Inc()
}

// RecordRefresh records one token refresh.
func (um *UpstreamMetrics) RecordRefresh(method, result string) {
	um.refreshes.WithLabelValues(method, result).Inc()
}
