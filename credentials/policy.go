package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SecurityPolicy is the installation-wide security configuration stored alongside the
// records. A loaded value is never mutated; rotation produces a new value.
type SecurityPolicy struct {
	// JWTSecret is the hex-encoded HMAC key. The encoded string itself is the key material.
	JWTSecret         string
	SessionTimeout    time.Duration
	MaxLoginAttempts  int
	LockoutDuration   time.Duration
	PasswordMinLength int
	BcryptRounds      int
}

type policyJSON struct {
	JWTSecret         string `json:"jwt_secret"`
	SessionTimeout    int64  `json:"session_timeout"`
	MaxLoginAttempts  int    `json:"max_login_attempts"`
	LockoutDuration   int64  `json:"lockout_duration"`
	PasswordMinLength int    `json:"password_min_length"`
	BcryptRounds      int    `json:"bcrypt_rounds"`
}

// MarshalJSON writes durations as milliseconds.
func (p SecurityPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{
		JWTSecret:         p.JWTSecret,
		SessionTimeout:    p.SessionTimeout.Milliseconds(),
		MaxLoginAttempts:  p.MaxLoginAttempts,
		LockoutDuration:   p.LockoutDuration.Milliseconds(),
		PasswordMinLength: p.PasswordMinLength,
		BcryptRounds:      p.BcryptRounds,
	})
}

// UnmarshalJSON reads durations as milliseconds.
func (p *SecurityPolicy) UnmarshalJSON(data []byte) error {
	var raw policyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = SecurityPolicy{
		JWTSecret:         raw.JWTSecret,
		SessionTimeout:    time.Duration(raw.SessionTimeout) * time.Millisecond,
		MaxLoginAttempts:  raw.MaxLoginAttempts,
		LockoutDuration:   time.Duration(raw.LockoutDuration) * time.Millisecond,
		PasswordMinLength: raw.PasswordMinLength,
		BcryptRounds:      raw.BcryptRounds,
	}
	return nil
}

// Validate checks the policy ranges enforced at load time.
func (p SecurityPolicy) Validate() error {
	switch {
	case p.JWTSecret == "":
		return errors.New("security.jwt_secret is empty")
	case p.SessionTimeout <= 0:
		return errors.New("security.session_timeout must be > 0")
	case p.MaxLoginAttempts <= 0:
		return errors.New("security.max_login_attempts must be > 0")
	case p.LockoutDuration <= 0:
		return errors.New("security.lockout_duration must be > 0")
	case p.PasswordMinLength <= 0:
		return errors.New("security.password_min_length must be > 0")
	case p.BcryptRounds < bcrypt.MinCost || p.BcryptRounds > bcrypt.MaxCost:
		return fmt.Errorf("security.bcrypt_rounds must be in [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// SecretBytes returns the HMAC key material.
func (p SecurityPolicy) SecretBytes() []byte {
	return []byte(p.JWTSecret)
}

// WithSecret returns a copy of p carrying secret.
func (p SecurityPolicy) WithSecret(secret string) SecurityPolicy {
	p.JWTSecret = secret
	return p
}

// SystemInfo is the document's "system" section.
type SystemInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Revision  uint64    `json:"revision"`
}

// Meta is the non-record part of the document.
type Meta struct {
	Security SecurityPolicy
	System   SystemInfo
	// Legacy is set when the document was loaded from the single-admin shape and has not
	// been rewritten since.
	Legacy bool
}
