// Package fifo provides a context-aware mutual-exclusion lock with strict
// first-in-first-out hand-off.
//
// # Hand-off semantics
//
// Releasing a held [Mutex] while callers are queued never unlocks it: ownership
// moves directly to the oldest waiter. A late arrival can therefore never jump
// the queue, and starvation is bounded by queue position.
//
// # What this package must NOT do
//
//   - Impose timeouts. Callers bound waiting through the context they pass.
//   - Import any other authflow package.
package fifo
