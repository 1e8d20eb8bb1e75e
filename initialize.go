package adminauth

import (
	"time"

	"github.com/MrEthical07/adminauth/credentials"
	"github.com/MrEthical07/adminauth/internal"
)

// DefaultAdminUsername is used by [Initialize] when no username is given.
const DefaultAdminUsername = "admin"

// Initialize creates the credential store at cfg.StorePath with a fresh signing secret,
// the security policy from cfg.InitDefaults and one super_admin. It fails with
// [ErrAlreadyExists] when a store exists and opts.Overwrite is false.
func Initialize(cfg Config, opts InitOptions) error {
	return initialize(cfg, opts, time.Now)
}

func initialize(cfg Config, opts InitOptions, now func() time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.Username == "" {
		opts.Username = DefaultAdminUsername
	}
	if err := validateUsername(opts.Username); err != nil {
		return err
	}

	secret, err := internal.NewSigningSecret()
	if err != nil {
		return err
	}
	policy := cfg.InitDefaults.policy(secret)

	verifier, err := newVerifier(cfg.Password, policy)
	if err != nil {
		return err
	}
	hash, err := verifier.Hash(opts.Password)
	if err != nil {
		return err
	}

	ts := now().UTC()
	_, err = credentials.Initialize(cfg.StorePath, credentials.Bootstrap{
		Admin: credentials.AdminRecord{
			Username:     opts.Username,
			PasswordHash: hash,
			Email:        opts.Email,
			DisplayName:  opts.DisplayName,
			Role:         RoleSuperAdmin,
			CreatedAt:    ts,
		},
		Security:  policy,
		Version:   cfg.Version,
		Now:       ts,
		Overwrite: opts.Overwrite,
	}, storeOptions(cfg, now)...)
	return err
}
