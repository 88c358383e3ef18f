// Package policy holds the local decisions authflow makes without asking the
// server: whether an access token is still usable, and whether a failed request
// is worth retrying.
//
// # Token expiry
//
// [TokenPolicy.IsExpired] reads the exp claim from the unverified payload
// segment. It is fail-closed: a malformed token, an undecodable payload, or a
// missing exp claim all count as expired, which forces a server round trip
// instead of trusting a token the client cannot check.
//
// # What this package must NOT do
//
//   - Verify token signatures. The client holds no keys; the server is the
//     authority.
//   - Perform I/O.
package policy
