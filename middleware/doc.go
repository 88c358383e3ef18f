// Package middleware exposes HTTP adapters that carry the stored authflow
// session into ordinary HTTP traffic.
//
// # Adapters
//
//   - [Transport] authenticates outgoing requests to the application API with
//     the stored access token, refreshing it through the gateway when expired
//     and retrying once after a 401.
//   - [Guard] protects local helper endpoints (a daemon's localhost API) so
//     they only serve while a fresh session exists.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Gateway calls. It does NOT
// implement authentication logic itself; refresh, dedup and storage are
// delegated to authflow.Gateway.
//
// # What this package must NOT do
//
//   - Parse JWTs directly (expiry is decided by the gateway's token policy).
//   - Write session storage (the gateway does).
//   - Retry a request more than once.
package middleware
