package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/adminauth/credentials"
	"github.com/MrEthical07/adminauth/internal/limiters"
)

// Deps groups flow dependency sets. The root engine builds this once per security state
// and delegates request methods to the matching flow implementation.
type Deps struct {
	Login          LoginDeps
	ChangePassword ChangePasswordDeps
	Session        SessionDeps
}

// FindRecordFunc loads one administrator record without taking the write lock.
type FindRecordFunc func(username string) (credentials.AdminRecord, error)

// UpdateRecordFunc applies fn to one record inside a single atomic store write. fn
// receives the policy stored in the same document generation.
type UpdateRecordFunc func(username string, fn func(credentials.AdminRecord, credentials.SecurityPolicy) (credentials.AdminRecord, error)) (credentials.AdminRecord, error)

// EmitAuditFunc emits one audit event about username.
type EmitAuditFunc func(ctx context.Context, eventType string, success bool, username string, err error, metadata func() map[string]string)

// LogFunc is a structured log call (message plus key/value pairs).
type LogFunc func(msg string, keyvals ...any)

// errNoWrite aborts a record update without persisting anything.
var errNoWrite = errors.New("flows: no write")

func attemptsOf(rec credentials.AdminRecord) limiters.Attempts {
	return limiters.Attempts{Failed: rec.FailedAttempts, LockedUntil: rec.LockedUntil}
}

func applyAttempts(rec *credentials.AdminRecord, a limiters.Attempts) {
	rec.FailedAttempts = a.Failed
	rec.LockedUntil = a.LockedUntil
}

// LockoutPolicy converts the stored policy into limiter thresholds.
func LockoutPolicy(p credentials.SecurityPolicy) limiters.Policy {
	return limiters.Policy{MaxAttempts: p.MaxLoginAttempts, Duration: p.LockoutDuration}
}

func orNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

func orNopLog(f LogFunc) LogFunc {
	if f == nil {
		return func(string, ...any) {}
	}
	return f
}

func orNopAudit(f EmitAuditFunc) EmitAuditFunc {
	if f == nil {
		return func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	return f
}

func orNopMetric(f func(int)) func(int) {
	if f == nil {
		return func(int) {}
	}
	return f
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
