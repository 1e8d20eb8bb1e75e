// Package limiters holds the login lockout state machine.
//
// [Policy.Decide] is a pure function of the stored attempt state, the current time, and the
// outcome of the password check. It performs no I/O; callers persist its result.
//
// # States
//
//   - Clean: no recorded failures.
//   - Accumulating: 0 < failures < threshold, no lock deadline.
//   - Locked: a lock deadline is recorded. While it lies in the future every attempt is
//     rejected without consulting the password. Once it passes, a successful login returns
//     the record to Clean, and a failed one locks it again immediately because the failure
//     count is still at or above the threshold.
//
// # What this package must NOT do
//
//   - Import the root package or the credential store.
//   - Read clocks. Time is always an argument.
package limiters
