// Package adminauth authenticates the administrators of a single installation against a
// file-backed credential store, with per-account lockout and stateless session tokens.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build]. Every mutation of
// the credential document goes through one atomic load-modify-write in package
// recordstore, so concurrent failed logins never lose a counter increment.
//
// # Architecture boundaries
//
// adminauth is the public surface. It exposes [Engine], [Builder], [Config], [Initialize]
// and value types (Identity, AdminInfo, Status, MetricsSnapshot). Flow orchestration, the
// lockout state machine, the Redis throttle and audit dispatch live under internal/.
//
// # Sessions
//
// Tokens are HS256 JWTs signed with the secret stored in the credential file. There is no
// server-side session table: [Engine.RotateSigningSecret] is the only revocation mechanism
// and invalidates every outstanding token at once. [Engine.ValidateSession] additionally
// rejects tokens whose subject was removed or changed role.
//
// # What this package must NOT do
//
//   - Create admin identities implicitly. A missing store is [ErrNotInitialized].
//   - Repair or reset a damaged store. An unreadable store is [ErrCorruptStore].
//   - Reveal to callers whether a login failed because of the username, the password or
//     the lockout.
package adminauth
