// Package tracing installs the OpenTelemetry tracer provider for the gateway.
//
// # Overview
//
// When tracing is enabled spans are batched and exported to an OTLP gRPC
// collector. When it is disabled a noop provider is installed, so the spans
// started by the gateway, upstream client and token manager cost almost
// nothing.
//
// Inbound W3C trace context (traceparent, tracestate and baggage) is honored
// in both modes through HTTPMiddleware, which also echoes the trace ID in the
// X-Trace-ID response header.
//
// # Sampling Strategies
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//   - parent: follow the caller's decision, ratio for root spans
//
// # Usage
//
//	cfg := &config.TracingConfig{
//	    Enabled:     true,
//	    Sampler:     "parent",
//	    SampleRatio: 0.1,
//	    Endpoint:    "localhost:4317",
//	    ServiceName: "kirogate",
//	    Insecure:    true,
//	}
//	tracer, err := tracing.New(cfg, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// Packages that emit spans use the global provider:
//
//	ctx, span := otel.Tracer("kiro-hq/gateway/pkg/upstream").Start(ctx, "upstream.CallStream")
//	defer span.End()
//	span.SetAttributes(attribute.String(tracing.AttrEndpoint, endpoint))
package tracing
