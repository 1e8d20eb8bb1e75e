package credentials

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvariantViolation is returned when a write would leave no super_admin.
	ErrInvariantViolation = errors.New("credentials: invariant violation")
	// ErrInvalidRecord is returned when a record fails field validation.
	ErrInvalidRecord = errors.New("credentials: invalid record")
)

// Role is an administrator role.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// AdminRecord is one administrator's stored identity and security state.
type AdminRecord struct {
	Username       string     `json:"username"`
	PasswordHash   string     `json:"password"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"name"`
	Role           Role       `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login"`
	FailedAttempts int        `json:"login_attempts"`
	LockedUntil    *time.Time `json:"locked_until"`
}

// IsLocked reports whether the record rejects logins at now.
func (r AdminRecord) IsLocked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// Validate checks field-level constraints that do not depend on other records.
func (r AdminRecord) Validate() error {
	if r.Username == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidRecord)
	}
	if !r.Role.Valid() {
		return fmt.Errorf("%w: %q has unknown role %q", ErrInvalidRecord, r.Username, r.Role)
	}
	if r.PasswordHash == "" {
		return fmt.Errorf("%w: %q has no password hash", ErrInvalidRecord, r.Username)
	}
	if r.FailedAttempts < 0 {
		return fmt.Errorf("%w: %q has negative login_attempts", ErrInvalidRecord, r.Username)
	}
	if r.FailedAttempts == 0 && r.LockedUntil != nil {
		return fmt.Errorf("%w: %q is locked with zero login_attempts", ErrInvalidRecord, r.Username)
	}
	return nil
}

// ClearLockout resets the failure counter and lock deadline.
func (r *AdminRecord) ClearLockout() {
	r.FailedAttempts = 0
	r.LockedUntil = nil
}

func countSuperAdmins(records map[string]AdminRecord) int {
	n := 0
	for _, rec := range records {
		if rec.Role == RoleSuperAdmin {
			n++
		}
	}
	return n
}

func checkRecords(records map[string]AdminRecord) error {
	for key, rec := range records {
		if key != rec.Username {
			return fmt.Errorf("%w: key %q holds record for %q", ErrInvalidRecord, key, rec.Username)
		}
		if err := rec.Validate(); err != nil {
			return err
		}
	}
	if len(records) > 0 && countSuperAdmins(records) == 0 {
		return fmt.Errorf("%w: no super_admin", ErrInvariantViolation)
	}
	return nil
}
