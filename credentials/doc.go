// Package credentials stores administrator records and the installation security policy
// in a single JSON document on top of [recordstore].
//
// The document has two accepted shapes. The current one keys records by username under
// "admins". The legacy one holds exactly one record under "admin"; that record is always
// treated as a super_admin and the file keeps its legacy shape until an explicit rewrite
// ([Repository.Migrate]) or until a second administrator is created.
//
// Every write re-checks the role invariant: a non-empty document always holds at least one
// super_admin. Operations that would break it fail with [ErrInvariantViolation] and leave the
// document untouched.
package credentials
