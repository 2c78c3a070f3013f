package metrics

import (
	"strconv"
	"sync"
	"time"

	"kiro-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherLabel replaces label values beyond the cardinality limit.
const OtherLabel = "other"

// Collector owns the gateway's Prometheus metrics. Its Observe methods match
// the hooks exposed by the gateway, upstream client, token manager and
// middleware, so each component reports without importing this package.
//
// Model names come from clients, so they pass through a cardinality limiter;
// names beyond the limit are reported as "other".
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requests *RequestMetrics
	upstream *UpstreamMetrics

	models *CardinalityLimiter
}

// NewCollector creates a collector registered on registry. If registry is
// nil a fresh one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		requests: NewRequestMetrics(cfg, registry),
		upstream: NewUpstreamMetrics(cfg, registry),
		models:   NewCardinalityLimiter(200),
	}
}

func (c *Collector) model(name string) string {
	if name == "" {
		return "unknown"
	}
	if !c.models.Allow(name) {
		return OtherLabel
	}
	return name
}

// ObserveRequest records a finished gateway request.
func (c *Collector) ObserveRequest(protocol, model, outcome string, status int, latency time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requests.RecordRequest(protocol, c.model(model), outcome, strconv.Itoa(status), latency)
}

// ObserveUsage records token and credit consumption for a request.
func (c *Collector) ObserveUsage(protocol, model string, inputTokens, outputTokens int, credits float64) {
	if !c.config.Enabled {
		return
	}
	c.requests.RecordUsage(protocol, c.model(model), inputTokens, outputTokens, credits)
}

// ObserveAttempt records one upstream HTTP attempt. status 0 is a
// transport failure.
func (c *Collector) ObserveAttempt(endpoint string, status int) {
	if !c.config.Enabled {
		return
	}
	label := strconv.Itoa(status)
	if status == 0 {
		label = "transport_error"
	}
	c.upstream.RecordAttempt(endpoint, label)
}

// ObserveRefresh records one access-token refresh.
func (c *Collector) ObserveRefresh(method string, err error) {
	if !c.config.Enabled {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.upstream.RecordRefresh(method, result)
}

// ObserveRejection records a request refused before reaching the gateway,
// for example "unauthorized" or "rate_limited".
func (c *Collector) ObserveRejection(reason string) {
	if !c.config.Enabled {
		return
	}
	c.requests.RecordRejection(reason)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct values a label may take.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting up to maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already admitted or can still be.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
