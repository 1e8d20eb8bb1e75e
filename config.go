package adminauth

import (
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth/credentials"
	"github.com/MrEthical07/adminauth/password"
	"golang.org/x/crypto/bcrypt"
)

// Config is the engine configuration. The security policy (secret, session timeout,
// lockout thresholds, minimum length, bcrypt rounds) lives in the store file, not here;
// InitDefaults is only used when a store is created.
type Config struct {
	StorePath       string
	DisableFileLock bool
	// Version is written into the store's system section.
	Version string

	JWT          JWTConfig
	Password     PasswordConfig
	Throttle     ThrottleConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	InitDefaults InitDefaults
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig adds optional claims checks on top of the stored signing secret.
type JWTConfig struct {
	Issuer   string
	Audience string
	// Leeway tolerates clock skew, at most two minutes.
	Leeway time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// PasswordConfig selects the hasher used for new hashes. Hashes of either format always
// verify.
type PasswordConfig struct {
	Algorithm string
	Argon2    password.Argon2Params
	// UpgradeOnLogin rehashes a stored hash made with weaker parameters than the active
	// policy in the same update that records a successful login.
	UpgradeOnLogin bool
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig configures the optional Redis login throttle. It is independent of the
// per-record lockout.
type ThrottleConfig struct {
	Enabled          bool
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
	RedisPrefix      string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
INIT DEFAULTS
====================================
*/

// InitDefaults is the security policy written by [Initialize].
type InitDefaults struct {
	SessionTimeout    time.Duration
	MaxLoginAttempts  int
	LockoutDuration   time.Duration
	PasswordMinLength int
	BcryptRounds      int
}

func (d InitDefaults) policy(secret string) credentials.SecurityPolicy {
	return credentials.SecurityPolicy{
		JWTSecret:         secret,
		SessionTimeout:    d.SessionTimeout,
		MaxLoginAttempts:  d.MaxLoginAttempts,
		LockoutDuration:   d.LockoutDuration,
		PasswordMinLength: d.PasswordMinLength,
		BcryptRounds:      d.BcryptRounds,
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		StorePath: "data/admin-credentials.json",
		Version:   "1.0.0",
		Password: PasswordConfig{
			Algorithm:      AlgorithmBcrypt,
			Argon2:         password.DefaultArgon2Params(),
			UpgradeOnLogin: true,
		},
		Throttle: ThrottleConfig{
			Enabled:          false,
			EnableIPThrottle: true,
			MaxAttempts:      20,
			Window:           15 * time.Minute,
			RedisPrefix:      "aal",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		InitDefaults: InitDefaults{
			SessionTimeout:    time.Hour,
			MaxLoginAttempts:  5,
			LockoutDuration:   15 * time.Minute,
			PasswordMinLength: 8,
			BcryptRounds:      10,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("%w: StorePath is required", ErrInvalidConfig)
	}

	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return fmt.Errorf("%w: JWT Leeway must be within [0,2m]", ErrInvalidConfig)
	}

	switch c.Password.Algorithm {
	case AlgorithmBcrypt:
	case AlgorithmArgon2id:
		if err := c.Password.Argon2.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unknown password algorithm %q", ErrInvalidConfig, c.Password.Algorithm)
	}

	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts <= 0 {
			return fmt.Errorf("%w: Throttle MaxAttempts must be > 0", ErrInvalidConfig)
		}
		if c.Throttle.Window <= 0 {
			return fmt.Errorf("%w: Throttle Window must be > 0", ErrInvalidConfig)
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit BufferSize must be > 0", ErrInvalidConfig)
	}

	d := c.InitDefaults
	switch {
	case d.SessionTimeout <= 0:
		return fmt.Errorf("%w: InitDefaults SessionTimeout must be > 0", ErrInvalidConfig)
	case d.MaxLoginAttempts <= 0:
		return fmt.Errorf("%w: InitDefaults MaxLoginAttempts must be > 0", ErrInvalidConfig)
	case d.LockoutDuration <= 0:
		return fmt.Errorf("%w: InitDefaults LockoutDuration must be > 0", ErrInvalidConfig)
	case d.PasswordMinLength <= 0:
		return fmt.Errorf("%w: InitDefaults PasswordMinLength must be > 0", ErrInvalidConfig)
	case d.BcryptRounds < bcrypt.MinCost || d.BcryptRounds > bcrypt.MaxCost:
		return fmt.Errorf("%w: InitDefaults BcryptRounds must be in [%d,%d]", ErrInvalidConfig, bcrypt.MinCost, bcrypt.MaxCost)
	}

	return nil
}
