package adminauth

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/adminauth/credentials"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/recordstore"
)

// Store and record errors, re-exported so one errors.Is works across layers.
var (
	// ErrNotInitialized means no credential store exists yet. Admin identities are never
	// created implicitly.
	ErrNotInitialized = recordstore.ErrNotInitialized
	// ErrCorruptStore means the store could not be parsed or failed schema checks.
	ErrCorruptStore = recordstore.ErrCorrupt
	// ErrNotFound is returned for an unknown username by administrative operations.
	ErrNotFound = recordstore.ErrNotFound
	// ErrAlreadyExists is returned when creating a record or store that already exists.
	ErrAlreadyExists = recordstore.ErrAlreadyExists
	// ErrInvariantViolation is returned when a change would leave no super_admin.
	ErrInvariantViolation = credentials.ErrInvariantViolation
	// ErrInvalidRecord is returned for records that fail field validation.
	ErrInvalidRecord = credentials.ErrInvalidRecord
	// ErrWeakPassword is returned for passwords below the stored minimum length.
	ErrWeakPassword = password.ErrWeakPassword
	// ErrPasswordTooLong is returned for passwords the active hasher cannot take in full.
	ErrPasswordTooLong = password.ErrPasswordTooLong
	// ErrSessionExpired is returned for a correctly signed token past its expiry.
	ErrSessionExpired = jwt.ErrExpired
	// ErrSessionInvalid is returned for any other token validation failure.
	ErrSessionInvalid = jwt.ErrInvalid
)

var (
	// ErrLoginFailed is satisfied by every per-user login or password-change rejection.
	// The specific cause is available through errors.Is but must not be shown to callers.
	ErrLoginFailed = errors.New("login failed")
	// ErrAccountLocked is the cause when the lockout policy rejected the attempt.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredentials is the cause when the password did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is the cause when the username does not exist.
	ErrUserNotFound = fmt.Errorf("unknown user: %w", ErrNotFound)
	// ErrLoginRateLimited is returned when the optional throttle refuses the attempt.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrSessionRevoked is returned for a valid token whose subject was removed or changed role.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrSessionCreationFailed is returned when a token could not be signed.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrPermissionDenied is recorded when a non-super_admin attempts an administrative operation.
	ErrPermissionDenied = errors.New("permission denied")
	ErrEngineNotReady   = errors.New("engine not initialized")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrInvalidConfig is wrapped by Config.Validate failures.
	ErrInvalidConfig = errors.New("invalid config")
)

type loginError struct {
	cause error
}

func loginFailure(cause error) error {
	return &loginError{cause: cause}
}

func (e *loginError) Error() string {
	return ErrLoginFailed.Error() + ": " + e.cause.Error()
}

func (e *loginError) Unwrap() error {
	return e.cause
}

func (e *loginError) Is(target error) bool {
	return target == ErrLoginFailed
}

// IsFatal reports whether err means the engine cannot authenticate anyone.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotInitialized) || errors.Is(err, ErrCorruptStore)
}
