// Package telemetry groups the gateway's observability packages.
//
// # Components
//
//   - logging: slog setup with charmbracelet console output and secret redaction
//   - metrics: Prometheus collectors for requests, upstream attempts and pool state
//   - tracing: OpenTelemetry spans exported over OTLP/gRPC
//   - health: liveness and readiness checks
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
//	checker := health.New(0)
//	checker.RegisterCheck("pool", health.PoolCheck(p))
//
// # Redaction
//
// With redaction on, attributes whose key names secret material (tokens,
// API keys, client secrets) are replaced with "***", and bearer tokens or
// credential JSON embedded in string values are masked.
package telemetry
