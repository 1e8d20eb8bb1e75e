package limiters

import (
	"errors"
	"time"
)

// ErrInvalidPolicy is returned by [Policy.Validate].
var ErrInvalidPolicy = errors.New("invalid lockout policy")

// Policy holds the lockout thresholds from the stored security policy.
type Policy struct {
	MaxAttempts int
	Duration    time.Duration
}

// Validate rejects non-positive thresholds.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 || p.Duration <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// Attempts is the per-record lockout state.
type Attempts struct {
	Failed      int
	LockedUntil *time.Time
}

// State classifies an [Attempts] value.
type State uint8

const (
	StateClean State = iota
	StateAccumulating
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateAccumulating:
		return "accumulating"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Classify returns the state of a.
func Classify(a Attempts) State {
	switch {
	case a.LockedUntil != nil:
		return StateLocked
	case a.Failed > 0:
		return StateAccumulating
	default:
		return StateClean
	}
}

// ActiveLock reports whether a rejects attempts at now.
func ActiveLock(a Attempts, now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// Decision is the outcome of one login attempt.
type Decision struct {
	Next    Attempts
	Allowed bool
	// Locked is set when the attempt was refused because of an active lock. The password
	// result was not consulted and Next equals the input.
	Locked bool
	// JustLocked is set when this attempt moved the record into the locked state.
	JustLocked bool
}

// PreCheck reports whether an attempt may proceed to password verification.
func (p Policy) PreCheck(cur Attempts, now time.Time) Decision {
	if ActiveLock(cur, now) {
		return Decision{Next: cur, Locked: true}
	}
	return Decision{Next: cur, Allowed: true}
}

// Decide computes the next attempt state.
//
// An active lock is checked before the password outcome, so a locked record rejects even a
// correct password and its counters do not move.
func (p Policy) Decide(cur Attempts, now time.Time, success bool) Decision {
	if ActiveLock(cur, now) {
		return Decision{Next: cur, Locked: true}
	}
	if success {
		return Decision{Allowed: true}
	}

	next := Attempts{Failed: cur.Failed + 1}
	if next.Failed >= p.MaxAttempts {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
		return Decision{Next: next, JustLocked: true}
	}
	return Decision{Next: next}
}
