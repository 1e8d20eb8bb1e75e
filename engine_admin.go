package adminauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/MrEthical07/adminauth/credentials"
	"github.com/MrEthical07/adminauth/internal"
)

const maxUsernameLength = 64

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidRecord)
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username longer than %d bytes", ErrInvalidRecord, maxUsernameLength)
	}
	if strings.IndexFunc(username, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: username contains whitespace or control characters", ErrInvalidRecord)
	}
	return nil
}

// RotatePassword sets a new password for username without knowing the old one and clears
// any lockout. It is the administrative reset path.
func (e *Engine) RotatePassword(ctx context.Context, username, newPlaintext string) error {
	st, err := e.securityState()
	if err != nil {
		return err
	}
	hash, err := st.verifier.Hash(newPlaintext)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordRotated, false, username, err, nil)
		return err
	}
	_, err = e.repo.Update(username, func(rec credentials.AdminRecord, _ credentials.SecurityPolicy) (credentials.AdminRecord, error) {
		rec.PasswordHash = hash
		rec.ClearLockout()
		return rec, nil
	})
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordRotated, false, username, err, nil)
		return err
	}

	e.metrics.Inc(MetricPasswordRotated)
	e.emitAudit(ctx, auditEventPasswordRotated, true, username, nil, nil)
	e.logger.Info("password rotated", "user", username, "actor", actorFromContext(ctx))
	return nil
}

// Unlock clears the failure counter and lock deadline of username unconditionally.
func (e *Engine) Unlock(ctx context.Context, username string) error {
	if _, err := e.securityState(); err != nil {
		return err
	}
	var wasLocked bool
	_, err := e.repo.Update(username, func(rec credentials.AdminRecord, _ credentials.SecurityPolicy) (credentials.AdminRecord, error) {
		wasLocked = rec.IsLocked(e.now())
		rec.ClearLockout()
		return rec, nil
	})
	if err != nil {
		e.emitAudit(ctx, auditEventAccountUnlocked, false, username, err, nil)
		return err
	}

	e.metrics.Inc(MetricAccountUnlocked)
	e.emitAudit(ctx, auditEventAccountUnlocked, true, username, nil, func() map[string]string {
		return map[string]string{"was_locked": fmt.Sprint(wasLocked)}
	})
	e.logger.Info("account unlocked", "user", username, "was_locked", wasLocked)
	return nil
}

// CreateAdmin adds an administrator. The role defaults to admin.
func (e *Engine) CreateAdmin(ctx context.Context, in NewAdmin) (AdminInfo, error) {
	st, err := e.securityState()
	if err != nil {
		return AdminInfo{}, err
	}
	if err := validateUsername(in.Username); err != nil {
		return AdminInfo{}, err
	}
	role := in.Role
	if role == "" {
		role = RoleAdmin
	}
	if !role.Valid() {
		return AdminInfo{}, fmt.Errorf("%w: unknown role %q", ErrInvalidRecord, role)
	}

	hash, err := st.verifier.Hash(in.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventAdminCreated, false, in.Username, err, nil)
		return AdminInfo{}, err
	}

	rec := credentials.AdminRecord{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		Role:         role,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.repo.Create(rec); err != nil {
		e.emitAudit(ctx, auditEventAdminCreated, false, in.Username, err, nil)
		return AdminInfo{}, err
	}

	e.metrics.Inc(MetricAdminCreated)
	e.emitAudit(ctx, auditEventAdminCreated, true, in.Username, nil, func() map[string]string {
		return map[string]string{"role": string(role)}
	})
	e.logger.Info("admin created", "user", in.Username, "role", role)
	return adminInfo(rec, e.now()), nil
}

// RemoveAdmin deletes username. Removing the last super_admin fails with
// [ErrInvariantViolation] and leaves the store unchanged.
func (e *Engine) RemoveAdmin(ctx context.Context, username string) error {
	if _, err := e.securityState(); err != nil {
		return err
	}
	if err := e.repo.Remove(username); err != nil {
		e.emitAudit(ctx, auditEventAdminRemoved, false, username, err, nil)
		return err
	}

	e.metrics.Inc(MetricAdminRemoved)
	e.emitAudit(ctx, auditEventAdminRemoved, true, username, nil, nil)
	e.logger.Info("admin removed", "user", username)
	return nil
}

// SetRole changes username's role. Demoting the last super_admin fails with
// [ErrInvariantViolation]. Tokens issued before the change stop validating.
func (e *Engine) SetRole(ctx context.Context, username string, role Role) (AdminInfo, error) {
	if _, err := e.securityState(); err != nil {
		return AdminInfo{}, err
	}
	rec, err := e.repo.SetRole(username, role)
	if err != nil {
		e.emitAudit(ctx, auditEventRoleChanged, false, username, err, nil)
		return AdminInfo{}, err
	}

	e.metrics.Inc(MetricRoleChanged)
	e.emitAudit(ctx, auditEventRoleChanged, true, username, nil, func() map[string]string {
		return map[string]string{"role": string(role)}
	})
	e.logger.Info("admin role changed", "user", username, "role", role)
	return adminInfo(rec, e.now()), nil
}

// UpdateProfile changes email and display name.
func (e *Engine) UpdateProfile(ctx context.Context, username string, upd ProfileUpdate) (AdminInfo, error) {
	if _, err := e.securityState(); err != nil {
		return AdminInfo{}, err
	}
	rec, err := e.repo.Update(username, func(rec credentials.AdminRecord, _ credentials.SecurityPolicy) (credentials.AdminRecord, error) {
		if upd.Email != nil {
			rec.Email = *upd.Email
		}
		if upd.DisplayName != nil {
			rec.DisplayName = *upd.DisplayName
		}
		return rec, nil
	})
	if err != nil {
		return AdminInfo{}, err
	}
	e.emitAudit(ctx, auditEventProfileUpdated, true, username, nil, nil)
	return adminInfo(rec, e.now()), nil
}

// ListAdmins returns every administrator ordered by username.
func (e *Engine) ListAdmins() ([]AdminInfo, error) {
	if _, err := e.securityState(); err != nil {
		return nil, err
	}
	recs, err := e.repo.List()
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := make([]AdminInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, adminInfo(rec, now))
	}
	return out, nil
}

// GetAdmin returns one administrator.
func (e *Engine) GetAdmin(username string) (AdminInfo, error) {
	if _, err := e.securityState(); err != nil {
		return AdminInfo{}, err
	}
	rec, err := e.repo.FindByUsername(username)
	if err != nil {
		return AdminInfo{}, err
	}
	return adminInfo(rec, e.now()), nil
}

// CurrentSuperAdminCount returns the number of super_admin records.
func (e *Engine) CurrentSuperAdminCount() (int, error) {
	if _, err := e.securityState(); err != nil {
		return 0, err
	}
	return e.repo.CountSuperAdmins()
}

// RotateSigningSecret replaces the stored signing secret. Every token issued before the
// call stops validating; this is the only way to revoke sessions.
func (e *Engine) RotateSigningSecret(ctx context.Context) error {
	if _, err := e.securityState(); err != nil {
		return err
	}
	e.rotateMu.Lock()
	defer e.rotateMu.Unlock()

	secret, err := internal.NewSigningSecret()
	if err != nil {
		return err
	}
	policy, err := e.repo.RotateSecret(secret)
	if err != nil {
		e.emitAudit(ctx, auditEventSecretRotated, false, "", err, nil)
		return err
	}
	state, err := newSecurityState(e.config, policy)
	if err != nil {
		return err
	}
	e.state.Store(state)

	e.metrics.Inc(MetricSecretRotated)
	e.emitAudit(ctx, auditEventSecretRotated, true, "", nil, nil)
	e.logger.Info("signing secret rotated; all sessions invalidated")
	return nil
}

// MigrateStore rewrites a legacy single-admin store in the multi-admin shape. It reports
// whether a rewrite happened.
func (e *Engine) MigrateStore(ctx context.Context) (bool, error) {
	if _, err := e.securityState(); err != nil {
		return false, err
	}
	migrated, err := e.repo.Migrate()
	if err != nil {
		return false, err
	}
	if migrated {
		e.emitAudit(ctx, auditEventStoreMigrated, true, "", nil, nil)
		e.logger.Info("credential store migrated to multi-admin format", "path", e.repo.Path())
	}
	return migrated, nil
}

// Status reports the state of the credential store. Store failures are reported in the
// result rather than returned.
func (e *Engine) Status() Status {
	st := Status{ThrottleEnabled: e != nil && e.throttle != nil}
	if e == nil || e.repo == nil {
		st.Error = ErrEngineNotReady.Error()
		return st
	}

	snap, err := e.repo.Snapshot()
	if err != nil {
		st.Initialized = !errors.Is(err, ErrNotInitialized)
		st.Corrupt = errors.Is(err, ErrCorruptStore)
		st.Error = err.Error()
		return st
	}

	now := e.now()
	st.Initialized = true
	st.Legacy = snap.Meta.Legacy
	st.Admins = len(snap.Records)
	for _, rec := range snap.Records {
		if rec.Role == RoleSuperAdmin {
			st.SuperAdmins++
		}
		if rec.IsLocked(now) {
			st.LockedAdmins++
		}
	}
	st.Revision = snap.Revision
	st.UpdatedAt = snap.UpdatedAt
	st.Version = snap.Meta.System.Version
	st.SessionTimeout = snap.Meta.Security.SessionTimeout
	return st
}

// RecordDenied audits an administrative operation refused to the actor in ctx because
// of its role.
func (e *Engine) RecordDenied(ctx context.Context, operation, target string) {
	e.emitAudit(ctx, auditEventAdministrativeOpRejected, false, target, ErrPermissionDenied, func() map[string]string {
		return map[string]string{"operation": operation}
	})
}
