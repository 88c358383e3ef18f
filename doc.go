// Package authflow is a client-side authentication orchestration layer for a
// single logged-in user talking to a remote auth API over HTTP.
//
// A [Client] is assembled with [New] and [Builder.Build]. It owns a [Gateway]
// (one HTTP round trip per operation, session persistence, a FIFO-serialized
// refresh) and hands out [Machine] instances that sequence startup, login,
// OTP-gated registration, password reset, refresh and logout.
//
// # Architecture boundaries
//
// authflow is the public surface. Token expiry and retry policy live in
// policy/, persistence in session/, the HTTP collaborator in transport/, and the
// adapters that carry the session into application traffic in middleware/.
// Mutex, schema validation, rate limiting and audit dispatch live under
// internal/ and are never exported directly.
//
// # What this package must NOT do
//
//   - Hold more than one session per Client.
//   - Queue auth operations while offline.
//   - Render UI; callers observe [Snapshot] values and send [Event] values.
//
// # Concurrency
//
// Gateway and Machine methods are safe for concurrent use. Machine invocations
// run on their own goroutines; a result that arrives after the machine left
// the state that started it is dropped.
package authflow
