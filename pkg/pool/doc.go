// Package pool holds the upstream credentials ("accounts") and picks one per
// request.
//
// An account is usable when its status is active and it is not cooling
// down. Selection runs over the usable subset with one of four strategies:
// round-robin, random, least-used or smart-score. Outcomes reported by the
// request path update the account counters and apply cooldowns:
//
//   - a rate-limit failure always starts a quota cooldown;
//   - other failures start an error cooldown once consecutive errors reach
//     the configured threshold;
//   - a success clears the cooldown and the consecutive error count.
//
// Every mutation is written through to the Store. Each account carries its
// own lock; the pool-level lock only guards membership.
package pool
