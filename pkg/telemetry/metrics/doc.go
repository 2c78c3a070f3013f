// Package metrics provides Prometheus metrics collection for the gateway.
//
// # Metrics Categories
//
//   - Request metrics: count, duration, tokens, credits and middleware rejections
//   - Upstream metrics: HTTP attempts per endpoint and status, token refreshes
//   - State metrics: pool accounts by state and audit recorder counters,
//     read from the live components at scrape time
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	// Hooks
//	gw := gateway.New(gwCfg, gateway.Components{Observer: collector, ...})
//	client, _ := upstream.New(upstream.Options{OnAttempt: collector.ObserveAttempt, ...})
//	_ = collector.RegisterState(accounts, recorder)
//
//	// Endpoint
//	router.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Client supplied model names are admitted to the model label up to a fixed
// limit; later names are reported as "other".
package metrics
