// Package internal contains helpers that are private to the module, currently secure
// random generation for signing secrets.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for Engine operations
//   - limiters: the login lockout state machine
//   - logging: charmbracelet/log construction
//   - rate: Redis-backed login throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public adminauth API.
package internal
