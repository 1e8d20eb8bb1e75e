package internaldefs

import (
	"github.com/MrEthical07/adminauth"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: adminauth.MetricLoginSuccess, Name: "adminauth_login_success_total", Help: "Successful login attempts."},
	{ID: adminauth.MetricLoginFailure, Name: "adminauth_login_failure_total", Help: "Failed login attempts."},
	{ID: adminauth.MetricLoginRateLimited, Name: "adminauth_login_rate_limited_total", Help: "Login attempts refused by the throttle."},
	{ID: adminauth.MetricLoginLockedRejected, Name: "adminauth_login_locked_rejected_total", Help: "Login attempts refused because the account was locked."},
	{ID: adminauth.MetricAccountLocked, Name: "adminauth_account_locked_total", Help: "Transitions into the locked state."},
	{ID: adminauth.MetricAccountUnlocked, Name: "adminauth_account_unlocked_total", Help: "Administrative unlock operations."},
	{ID: adminauth.MetricPasswordUpgraded, Name: "adminauth_password_upgraded_total", Help: "Password hashes upgraded on login."},
	{ID: adminauth.MetricPasswordChangeSuccess, Name: "adminauth_password_change_success_total", Help: "Successful password changes."},
	{ID: adminauth.MetricPasswordChangeInvalidOld, Name: "adminauth_password_change_invalid_old_total", Help: "Password change attempts with an invalid current password."},
	{ID: adminauth.MetricPasswordChangeReuseRejected, Name: "adminauth_password_change_reuse_rejected_total", Help: "Password change attempts rejected for reuse."},
	{ID: adminauth.MetricPasswordRotated, Name: "adminauth_password_rotated_total", Help: "Administrative password resets."},
	{ID: adminauth.MetricAdminCreated, Name: "adminauth_admin_created_total", Help: "Administrators created."},
	{ID: adminauth.MetricAdminRemoved, Name: "adminauth_admin_removed_total", Help: "Administrators removed."},
	{ID: adminauth.MetricRoleChanged, Name: "adminauth_role_changed_total", Help: "Administrator role changes."},
	{ID: adminauth.MetricSecretRotated, Name: "adminauth_secret_rotated_total", Help: "Signing secret rotations."},
	{ID: adminauth.MetricSessionValidated, Name: "adminauth_session_validated_total", Help: "Session tokens accepted."},
	{ID: adminauth.MetricSessionExpired, Name: "adminauth_session_expired_total", Help: "Session tokens rejected as expired."},
	{ID: adminauth.MetricSessionInvalid, Name: "adminauth_session_invalid_total", Help: "Session tokens rejected as invalid."},
	{ID: adminauth.MetricSessionRevoked, Name: "adminauth_session_revoked_total", Help: "Session tokens whose subject was removed or changed role."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: adminauth.MetricLoginLatency, Name: "adminauth_login_latency_seconds", Help: "Login latency histogram."},
	{ID: adminauth.MetricValidateLatency, Name: "adminauth_validate_latency_seconds", Help: "Session validation latency histogram."},
}

// AuditDroppedName is the counter for audit events lost to dispatcher backpressure.
const AuditDroppedName = "adminauth_audit_dropped_total"

// HistogramBounds are the upper bounds, in seconds, matching the engine buckets.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
