// Package health serves the gateway's liveness and readiness probes.
//
// GET /health answers 200 whenever the process is up. GET /ready runs the
// registered checks concurrently, each under its own timeout, and answers
// 503 while any of them fails. The gateway registers two checks:
//
//   - pool: at least one account is active and out of cooldown
//   - database: the SQLite handle answers a ping
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("pool", health.PoolCheck(accounts))
//	checker.RegisterCheck("database", db.DB().PingContext)
//
//	r.Get("/health", checker.LivenessHandler())
//	r.Get("/ready", checker.ReadinessHandler())
package health
