// Package session owns the single persisted [AuthSession] record of a logged-in
// device: schema validation, atomic save/read/remove through a pluggable
// [Storage] backend, and pure helpers that derive new sessions from old ones.
//
// # Stored format
//
// The value under the store key is one JSON-encoded [AuthSession]. Older clients
// wrote either a looser object or a bare token string; [Store.ReadSession]
// accepts both through explicit fallback paths and degrades anything else to
// "no session" rather than failing.
//
// # Architecture boundaries
//
// This package does NOT talk to the auth API, decide token expiry, or drive the
// login flows. Those belong to the gateway, the policy package and the machine.
//
// # What this package must NOT do
//
//   - Accept a JSON array as a session or profile object.
//   - Persist a session without an access token.
//   - Import authflow, policy, or transport (no upward imports).
package session
