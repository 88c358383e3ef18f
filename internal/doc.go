// Package internal groups helpers that are private to authflow.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - fifo: context-aware mutex that hands the lock over in arrival order
//   - rate: fixed-window attempt limiters (memory and Redis)
//   - schema: struct-tag validation of sessions, profiles and requests
//
// # What this package must NOT do
//
//   - Export types that appear in the public authflow API.
//   - Be imported by any package outside the authflow module.
package internal
