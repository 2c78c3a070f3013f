package metrics

import (
	"kiro-hq/gateway/pkg/pool"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolSource reports credential pool state.
type PoolSource interface {
	Stats() pool.Stats
}

// RecorderSource reports audit recorder counters.
type RecorderSource interface {
	Stats() (written, dropped, failed uint64)
}

// stateCollector reads pool and recorder state at scrape time, so the
// exported values can never drift from the live components.
type stateCollector struct {
	pool     PoolSource
	recorder RecorderSource

	accounts      *prometheus.Desc
	poolRequests  *prometheus.Desc
	poolErrors    *prometheus.Desc
	poolCredits   *prometheus.Desc
	auditRecorded *prometheus.Desc
}

// RegisterState exports pool gauges and, when recorder is non-nil, audit
// recorder counters.
func (c *Collector) RegisterState(p PoolSource, recorder RecorderSource) error {
	name := func(n string) string {
		return prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, n)
	}
	return c.registry.Register(&stateCollector{
		pool:     p,
		recorder: recorder,
		accounts: prometheus.NewDesc(name("pool_accounts"),
			"Accounts in the credential pool by state", []string{"state"}, nil),
		poolRequests: prometheus.NewDesc(name("pool_requests"),
			"Requests served by pooled accounts since they were added", nil, nil),
		poolErrors: prometheus.NewDesc(name("pool_errors"),
			"Failures charged to pooled accounts since they were added", nil, nil),
		poolCredits: prometheus.NewDesc(name("pool_credits"),
			"Credits consumed by pooled accounts since they were added", nil, nil),
		auditRecorded: prometheus.NewDesc(name("audit_traces_total"),
			"Audit traces by write result", []string{"result"}, nil),
	})
}

// Describe implements prometheus.Collector.
func (s *stateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.accounts
	ch <- s.poolRequests
	ch <- s.poolErrors
	ch <- s.poolCredits
	if s.recorder != nil {
		ch <- s.auditRecorded
	}
}

// Collect implements prometheus.Collector.
func (s *stateCollector) Collect(ch chan<- prometheus.Metric) {
	st := s.pool.Stats()
	for state, n := range map[string]int{
		"active":   st.Active,
		"cooldown": st.Cooldown,
		"invalid":  st.Invalid,
		"disabled": st.Disabled,
	} {
		ch <- prometheus.MustNewConstMetric(s.accounts, prometheus.GaugeValue, float64(n), state)
	}
	ch <- prometheus.MustNewConstMetric(s.poolRequests, prometheus.GaugeValue, float64(st.TotalRequests))
	ch <- prometheus.MustNewConstMetric(s.poolErrors, prometheus.GaugeValue, float64(st.TotalErrors))
	ch <- prometheus.MustNewConstMetric(s.poolCredits, prometheus.GaugeValue, st.TotalCredits.InexactFloat64())

	if s.recorder != nil {
		written, dropped, failed := s.recorder.Stats()
		ch <- prometheus.MustNewConstMetric(s.auditRecorded, prometheus.CounterValue, float64(written), "written")
		ch <- prometheus.MustNewConstMetric(s.auditRecorded, prometheus.CounterValue, float64(dropped), "dropped")
		ch <- prometheus.MustNewConstMetric(s.auditRecorded, prometheus.CounterValue, float64(failed), "failed")
	}
}
