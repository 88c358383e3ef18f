// Package rate provides fixed-window attempt limiters for client-side
// authentication requests.
//
// # Window semantics
//
// Each key owns a counter and a reset time. The first hit opens a window of
// Config.Window; hits beyond Config.Max inside that window are rejected with
// [ErrRateLimited]. Expired windows are evicted lazily on the next check for
// the same key, never by a background sweeper.
//
// Two implementations share the [Limiter] contract:
//   - [Memory] keeps state in-process (one instance per client, injected).
//   - [Redis] uses INCR + conditional EXPIRE so several processes sharing one
//     Redis see a single budget.
//
// # What this package must NOT do
//
//   - Decide which operations are limited (the gateway builds keys).
//   - Hold package-level limiter state.
package rate
