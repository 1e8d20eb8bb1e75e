package adminauth

import (
	"time"

	"github.com/MrEthical07/adminauth/credentials"
)

// Role is an administrator's privilege level.
type Role = credentials.Role

const (
	RoleSuperAdmin = credentials.RoleSuperAdmin
	RoleAdmin      = credentials.RoleAdmin
)

// Identity is the authenticated subject of a session token.
type Identity struct {
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsSuperAdmin reports whether the identity carries the super_admin role.
func (i Identity) IsSuperAdmin() bool {
	return i.Role == RoleSuperAdmin
}

// LoginResult is returned by a successful [Engine.Login].
type LoginResult struct {
	Token     string    `json:"token"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminInfo is the public view of an administrator record. It never carries the hash.
type AdminInfo struct {
	Username       string     `json:"username"`
	Email          string     `json:"email,omitempty"`
	DisplayName    string     `json:"name,omitempty"`
	Role           Role       `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login,omitempty"`
	FailedAttempts int        `json:"login_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	Locked         bool       `json:"locked"`
}

func adminInfo(rec credentials.AdminRecord, now time.Time) AdminInfo {
	return AdminInfo{
		Username:       rec.Username,
		Email:          rec.Email,
		DisplayName:    rec.DisplayName,
		Role:           rec.Role,
		CreatedAt:      rec.CreatedAt,
		LastLoginAt:    rec.LastLoginAt,
		FailedAttempts: rec.FailedAttempts,
		LockedUntil:    rec.LockedUntil,
		Locked:         rec.IsLocked(now),
	}
}

// NewAdmin is the input to [Engine.CreateAdmin].
type NewAdmin struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
	Role        Role
}

// ProfileUpdate changes display fields. Nil fields are left as they are.
type ProfileUpdate struct {
	Email       *string
	DisplayName *string
}

// InitOptions describes the first administrator written by [Initialize].
type InitOptions struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
	// Overwrite replaces an existing store. Existing sessions stop validating because a new
	// signing secret is generated.
	Overwrite bool
}

// Status is a readiness report of the credential store.
type Status struct {
	Initialized     bool          `json:"initialized"`
	Corrupt         bool          `json:"corrupt"`
	Legacy          bool          `json:"legacy,omitempty"`
	Admins          int           `json:"admins"`
	SuperAdmins     int           `json:"super_admins"`
	LockedAdmins    int           `json:"locked_admins"`
	Revision        uint64        `json:"revision"`
	UpdatedAt       time.Time     `json:"updated_at,omitempty"`
	Version         string        `json:"version,omitempty"`
	SessionTimeout  time.Duration `json:"session_timeout"`
	ThrottleEnabled bool          `json:"throttle_enabled"`
	Error           string        `json:"error,omitempty"`
}
