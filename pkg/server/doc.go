// Package server wires the gateway's HTTP surface: routes, the middleware
// chain, TLS and graceful shutdown.
//
// # Routes
//
// Public routes are mounted both under /v1 and at the bare path, since some
// clients are configured with a base URL that already ends in /v1:
//
//   - POST /v1/chat/completions: OpenAI chat completions
//   - POST /v1/messages: Anthropic messages
//   - GET /v1/models: model catalogue
//
// Operational routes need no API key:
//
//   - GET /health: liveness
//   - GET /ready: readiness (a usable credential and a reachable store)
//   - GET /version: build information
//   - GET /metrics: Prometheus metrics, when enabled
//
// Admin routes live under /admin and require the admin bearer token.
//
// # Middleware Chain
//
// Every request passes, outermost first, through RealIP, Recovery, RequestID,
// Logging, CORS and trace context extraction. Public routes then add the
// body limit, API key authentication and, when enabled, the per-client rate
// limit.
//
// # TLS
//
// With server.tls.enabled the server terminates TLS using either a static
// certificate pair or certificates issued by Let's Encrypt for
// server.tls.autocert_domains. Autocert also answers http-01 challenges on
// port 80.
//
// # Shutdown
//
// Start returns when its context is cancelled, after in-flight requests and
// open streams finish or server.shutdown_timeout elapses.
package server
