package metrics

import (
	"time"

	"kiro-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks client-facing request processing.
//
// Metrics:
//   - kirogate_gateway_requests_total: requests by protocol, model, outcome, status
//   - kirogate_gateway_request_duration_seconds: latency histogram
//   - kirogate_gateway_tokens_total: tokens by protocol, model, direction
//   - kirogate_gateway_credits_total: upstream credits consumed
//   - kirogate_gateway_rejected_requests_total: requests refused by middleware
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	creditsTotal    *prometheus.CounterVec
	rejectedTotal   *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of chat requests processed",
			},
			[]string{"protocol", "model", "outcome", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of chat requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"protocol", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tokens_total",
				Help:      "Total number of tokens reported or estimated",
			},
			[]string{"protocol", "model", "direction"},
		),

		creditsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "credits_total",
				Help:      "Total upstream credits consumed",
			},
			[]string{"protocol", "model"},
		),

		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rejected_requests_total",
				Help:      "Requests refused before reaching the gateway",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
		rm.creditsTotal,
		rm.rejectedTotal,
	)

	return rm
}

// RecordRequest records a finished request.
func (rm *RequestMetrics) RecordRequest(protocol, model, outcome, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(protocol, model, outcome, status).Inc()
	rm.requestDuration.WithLabelValues(protocol, model).Observe(duration.Seconds())
}

// RecordUsage records token counts and credits. Zero values are skipped.
func (rm *RequestMetrics) RecordUsage(protocol, model string, inputTokens, outputTokens int, credits float64) {
	if inputTokens > 0 {
		rm.tokensTotal.WithLabelValues(protocol, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		rm.tokensTotal.WithLabelValues(protocol, model, "output").Add(float64(outputTokens))
	}
	if credits > 0 {
		rm.creditsTotal.WithLabelValues(protocol, model).Add(credits)
	}
}

// RecordRejection records a refused request.
func (rm *RequestMetrics) RecordRejection(reason string) {
	rm.rejectedTotal.WithLabelValues(reason).Inc()
}
