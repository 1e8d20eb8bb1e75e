// Package rate implements the optional Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// `<prefix>:u:<username>` per username and `<prefix>:ip:<addr>` per client IP.
//
// The throttle is independent of the lockout state stored with each administrator record.
// It caps request volume (including guesses against unknown usernames) and never
// touches the credential store.
//
// # What this package must NOT do
//
//   - Decide lockout. That lives in internal/limiters and is persisted with the record.
package rate
