package adminauth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginRateLimited         = "login_rate_limited"
	auditEventAccountLocked            = "account_locked"
	auditEventAccountUnlocked          = "account_unlocked"
	auditEventPasswordUpgraded         = "password_hash_upgraded"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeFailure    = "password_change_failure"
	auditEventPasswordRotated          = "password_rotated"
	auditEventAdminCreated             = "admin_created"
	auditEventAdminRemoved             = "admin_removed"
	auditEventRoleChanged              = "admin_role_changed"
	auditEventProfileUpdated           = "admin_profile_updated"
	auditEventSecretRotated            = "signing_secret_rotated"
	auditEventStoreMigrated            = "store_migrated"
	auditEventAdministrativeOpRejected = "admin_operation_rejected"
)

// AuditErrorCode is the coarse error classification written into audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrInvariant          AuditErrorCode = "invariant_violation"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPermission         AuditErrorCode = "permission_denied"
	auditErrStore              AuditErrorCode = "store_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Username:  username,
		Actor:     actorFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	// Version 7 IDs sort by time, which the bbolt sink relies on for key order.
	if id, idErr := uuid.NewV7(); idErr == nil {
		event.ID = id.String()
	} else {
		event.ID = uuid.NewString()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrPasswordTooLong):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrInvariantViolation):
		return auditErrInvariant
	case errors.Is(err, ErrAlreadyExists):
		return auditErrDuplicate
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermission
	case errors.Is(err, ErrNotInitialized),
		errors.Is(err, ErrCorruptStore):
		return auditErrStore
	default:
		return auditErrInternal
	}
}
