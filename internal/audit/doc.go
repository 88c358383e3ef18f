// Package audit records what the gateway did on behalf of the user: logins,
// registrations, OTP checks, refreshes and logouts, each as one [Event].
//
// A [Dispatcher] relays events to a [Sink] on one goroutine, so a slow sink
// delays the gateway only when its queue is full and DropOnFull is off.
// Sinks shipped here cover the common consumers: a channel for UIs and
// tests, newline-delimited JSON for files, and a discard sink.
//
// The gateway decides which events exist and what they carry; this package
// only stamps IDs and timestamps and delivers. It imports no other authflow
// package.
package audit
