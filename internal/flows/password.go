package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/adminauth/credentials"
	"github.com/MrEthical07/adminauth/internal/limiters"
)

// ChangePasswordMetrics carries metric IDs needed by the change-password flow.
type ChangePasswordMetrics struct {
	Success       int
	InvalidOld    int
	Reuse         int
	AccountLocked int
}

// ChangePasswordEvents carries audit event names used by the change-password flow.
type ChangePasswordEvents struct {
	Success       string
	Failure       string
	AccountLocked string
}

// ChangePasswordErrors carries host-level sentinel errors used by the change-password flow.
type ChangePasswordErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountLocked      error
	UserNotFound       error
	PasswordReuse      error
	NotFound           error
	Fail               func(cause error) error
}

// ChangePasswordDeps captures change-password dependencies.
type ChangePasswordDeps struct {
	Now          func() time.Time
	FindRecord   FindRecordFunc
	UpdateRecord UpdateRecordFunc

	VerifyPassword func(plaintext, hash string) (bool, error)
	HashPassword   func(plaintext string) (string, error)

	MetricInc func(int)
	EmitAudit EmitAuditFunc
	Info      LogFunc

	Metrics ChangePasswordMetrics
	Events  ChangePasswordEvents
	Errors  ChangePasswordErrors
}

// RunChangePassword replaces username's password after verifying current.
//
// A wrong current password counts toward lockout exactly like a failed login. A successful
// change clears any lockout state.
func RunChangePassword(ctx context.Context, username, current, next string, deps ChangePasswordDeps) error {
	deps.Now = orNow(deps.Now)
	deps.MetricInc = orNopMetric(deps.MetricInc)
	deps.EmitAudit = orNopAudit(deps.EmitAudit)
	deps.Info = orNopLog(deps.Info)
	if deps.FindRecord == nil ||
		deps.UpdateRecord == nil ||
		deps.VerifyPassword == nil ||
		deps.HashPassword == nil ||
		deps.Errors.Fail == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(why string, metric int, cause error) error {
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, deps.Events.Failure, false, username, cause, reason(why))
		return deps.Errors.Fail(cause)
	}

	rec, err := deps.FindRecord(username)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			return fail("user_not_found", deps.Metrics.InvalidOld, deps.Errors.UserNotFound)
		}
		return err
	}
	if limiters.ActiveLock(attemptsOf(rec), deps.Now()) {
		return fail("account_locked", deps.Metrics.AccountLocked, deps.Errors.AccountLocked)
	}

	ok, _ := deps.VerifyPassword(current, rec.PasswordHash)
	if !ok {
		return recordWrongPassword(ctx, username, deps, fail)
	}
	if current == next {
		deps.MetricInc(deps.Metrics.Reuse)
		deps.EmitAudit(ctx, deps.Events.Failure, false, username, deps.Errors.PasswordReuse, reason("password_reuse"))
		return deps.Errors.PasswordReuse
	}

	newHash, err := deps.HashPassword(next)
	if err != nil {
		return err
	}

	var stale bool
	_, err = deps.UpdateRecord(username, func(cur credentials.AdminRecord, _ credentials.SecurityPolicy) (credentials.AdminRecord, error) {
		if cur.PasswordHash != rec.PasswordHash {
			if ok, _ := deps.VerifyPassword(current, cur.PasswordHash); !ok {
				stale = true
				return cur, errNoWrite
			}
		}
		cur.PasswordHash = newHash
		cur.ClearLockout()
		return cur, nil
	})
	switch {
	case errors.Is(err, errNoWrite) && stale:
		return recordWrongPassword(ctx, username, deps, fail)
	case errors.Is(err, deps.Errors.NotFound):
		return fail("user_not_found", deps.Metrics.InvalidOld, deps.Errors.UserNotFound)
	case err != nil:
		return err
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, username, nil, nil)
	deps.Info("password changed", "user", username)
	return nil
}

// recordWrongPassword counts one failed verification of the current password.
func recordWrongPassword(ctx context.Context, username string, deps ChangePasswordDeps, fail func(string, int, error) error) error {
	var decision limiters.Decision
	updated, err := deps.UpdateRecord(username, func(cur credentials.AdminRecord, policy credentials.SecurityPolicy) (credentials.AdminRecord, error) {
		decision = LockoutPolicy(policy).Decide(attemptsOf(cur), deps.Now(), false)
		if decision.Locked {
			return cur, errNoWrite
		}
		applyAttempts(&cur, decision.Next)
		return cur, nil
	})
	switch {
	case errors.Is(err, errNoWrite):
		return fail("account_locked", deps.Metrics.AccountLocked, deps.Errors.AccountLocked)
	case errors.Is(err, deps.Errors.NotFound):
		return fail("user_not_found", deps.Metrics.InvalidOld, deps.Errors.UserNotFound)
	case err != nil:
		return err
	}
	if decision.JustLocked {
		deps.EmitAudit(ctx, deps.Events.AccountLocked, true, username, nil, nil)
		deps.Info("account locked", "user", username, "failed_attempts", updated.FailedAttempts, "until", updated.LockedUntil.UTC())
		return fail("locked_after_failure", deps.Metrics.AccountLocked, deps.Errors.AccountLocked)
	}
	return fail("password_mismatch", deps.Metrics.InvalidOld, deps.Errors.InvalidCredentials)
}
