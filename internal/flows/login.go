package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth/credentials"
	"github.com/MrEthical07/adminauth/internal/limiters"
	"github.com/MrEthical07/adminauth/jwt"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Token    string
	Identity jwt.Identity
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	AccountLocked    int
	LockedRejected   int
	PasswordUpgraded int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
	AccountLocked    string
	PasswordUpgraded string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady        error
	InvalidCredentials    error
	AccountLocked         error
	UserNotFound          error
	LoginRateLimited      error
	SessionCreationFailed error
	// NotFound is the store's missing-key sentinel.
	NotFound error
	// Fail wraps a per-user cause into the outward login failure.
	Fail func(cause error) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	UpgradeOnLogin bool

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	// CheckLoginRate returns non-nil only when the caller is over budget.
	CheckLoginRate     func(ctx context.Context, username, ip string) error
	RecordLoginFailure func(ctx context.Context, username, ip string)
	ResetLoginRate     func(ctx context.Context, username, ip string)

	FindRecord   FindRecordFunc
	UpdateRecord UpdateRecordFunc

	VerifyPassword       func(plaintext, hash string) (bool, error)
	VerifyDummy          func(plaintext string)
	PasswordNeedsUpgrade func(hash string) (bool, error)
	HashPassword         func(plaintext string) (string, error)

	IssueSession func(username, role string, now time.Time) (string, jwt.Identity, error)

	MetricInc func(int)
	EmitAudit EmitAuditFunc
	Info      LogFunc
	Warn      LogFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates username/plaintext and issues a session token.
//
// Order: throttle, record lookup, lockout pre-check, password verification, atomic
// record update with a fresh lockout decision, token issuance. A locked record is rejected
// before its password is checked, even when the password is correct.
func RunLogin(ctx context.Context, username, plaintext string, deps LoginDeps) (*LoginResult, error) {
	deps.Now = orNow(deps.Now)
	deps.MetricInc = orNopMetric(deps.MetricInc)
	deps.EmitAudit = orNopAudit(deps.EmitAudit)
	deps.Info = orNopLog(deps.Info)
	deps.Warn = orNopLog(deps.Warn)
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.VerifyDummy == nil {
		deps.VerifyDummy = func(string) {}
	}
	if deps.FindRecord == nil ||
		deps.UpdateRecord == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueSession == nil ||
		deps.Errors.Fail == nil {
		return nil, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, username, ip); err != nil {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, username, deps.Errors.LoginRateLimited, nil)
			return nil, deps.Errors.LoginRateLimited
		}
	}

	fail := func(why string, cause error) (*LoginResult, error) {
		if deps.RecordLoginFailure != nil {
			deps.RecordLoginFailure(ctx, username, ip)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, username, cause, reason(why))
		return nil, deps.Errors.Fail(cause)
	}

	rec, err := deps.FindRecord(username)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			deps.VerifyDummy(plaintext)
			return fail("user_not_found", deps.Errors.UserNotFound)
		}
		return nil, err
	}

	if limiters.ActiveLock(attemptsOf(rec), deps.Now()) {
		deps.MetricInc(deps.Metrics.LockedRejected)
		return fail("account_locked", deps.Errors.AccountLocked)
	}

	ok, verr := deps.VerifyPassword(plaintext, rec.PasswordHash)
	if verr != nil {
		deps.Warn("stored password hash could not be verified", "user", username, "err", verr)
		ok = false
	}

	var upgraded string
	if ok && deps.UpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil {
		if needs, err := deps.PasswordNeedsUpgrade(rec.PasswordHash); err == nil && needs {
			if h, err := deps.HashPassword(plaintext); err == nil {
				upgraded = h
			} else {
				deps.Warn("password hash upgrade generation failed", "user", username, "err", err)
			}
		}
	}

	var decision limiters.Decision
	updated, err := deps.UpdateRecord(username, func(cur credentials.AdminRecord, policy credentials.SecurityPolicy) (credentials.AdminRecord, error) {
		success := ok
		if cur.PasswordHash != rec.PasswordHash {
			// Rotated since the read: the earlier verification was against a stale hash.
			success, _ = deps.VerifyPassword(plaintext, cur.PasswordHash)
			upgraded = ""
		}
		decision = LockoutPolicy(policy).Decide(attemptsOf(cur), deps.Now(), success)
		if decision.Locked {
			return cur, errNoWrite
		}
		applyAttempts(&cur, decision.Next)
		if decision.Allowed {
			now := deps.Now().UTC()
			cur.LastLoginAt = &now
			if upgraded != "" {
				cur.PasswordHash = upgraded
			}
		}
		return cur, nil
	})
	plaintext = ""

	switch {
	case errors.Is(err, errNoWrite):
		deps.MetricInc(deps.Metrics.LockedRejected)
		return fail("account_locked", deps.Errors.AccountLocked)
	case errors.Is(err, deps.Errors.NotFound):
		return fail("user_not_found", deps.Errors.UserNotFound)
	case err != nil:
		return nil, err
	}

	if !decision.Allowed {
		if decision.JustLocked {
			deps.MetricInc(deps.Metrics.AccountLocked)
			deps.EmitAudit(ctx, deps.Events.AccountLocked, true, username, nil, func() map[string]string {
				return map[string]string{
					"failed_attempts": fmt.Sprint(updated.FailedAttempts),
					"locked_until":    updated.LockedUntil.UTC().Format(time.RFC3339),
				}
			})
			deps.Info("account locked", "user", username, "failed_attempts", updated.FailedAttempts, "until", updated.LockedUntil.UTC())
			return fail("locked_after_failure", deps.Errors.AccountLocked)
		}
		return fail("password_mismatch", deps.Errors.InvalidCredentials)
	}

	if upgraded != "" {
		deps.MetricInc(deps.Metrics.PasswordUpgraded)
		deps.EmitAudit(ctx, deps.Events.PasswordUpgraded, true, username, nil, nil)
	}
	if deps.ResetLoginRate != nil {
		deps.ResetLoginRate(ctx, username, ip)
	}

	token, id, err := deps.IssueSession(updated.Username, string(updated.Role), deps.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.SessionCreationFailed, err)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, username, nil, func() map[string]string {
		return map[string]string{"jti": id.TokenID}
	})
	return &LoginResult{Token: token, Identity: id}, nil
}
