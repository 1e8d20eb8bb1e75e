// Package flows contains pure-function orchestrators for Engine operations.
//
// Each flow function (RunLogin, RunChangePassword, RunValidateSession) accepts a typed
// dependency struct and returns results without side-effects beyond those dependencies.
// The Engine builds the dependency structs; tests can supply fakes.
//
// # Login ordering
//
// The lockout pre-check runs before the password is verified, so a locked record never has
// its password checked. Password verification runs outside the store's write lock; the
// lockout decision is then recomputed inside the atomic record update from the freshly
// loaded record, so concurrent attempts never lose a counter increment.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import adminauth (to avoid import cycles).
//   - Pass the caller's context into a record update. Once started, a state change is
//     always persisted.
package flows
