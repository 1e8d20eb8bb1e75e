package adminauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/MrEthical07/adminauth/credentials"
	internalaudit "github.com/MrEthical07/adminauth/internal/audit"
	"github.com/MrEthical07/adminauth/internal/flows"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/password"
)

// Engine is the administrator authentication service. It is safe for concurrent use.
type Engine struct {
	config Config
	repo   *credentials.Repository

	// state holds everything derived from the stored security policy. It is replaced as a
	// whole by RotateSigningSecret and Reload.
	state    atomic.Pointer[securityState]
	rotateMu sync.Mutex

	throttle *rate.Limiter
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   *clog.Logger
	now      func() time.Time

	closeOnce sync.Once
}

type securityState struct {
	policy   credentials.SecurityPolicy
	issuer   *jwt.Manager
	verifier *password.Verifier
}

func newSecurityState(cfg Config, policy credentials.SecurityPolicy) (*securityState, error) {
	issuer, err := jwt.NewManager(jwt.Config{
		Secret:     policy.SecretBytes(),
		SessionTTL: policy.SessionTimeout,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	verifier, err := newVerifier(cfg.Password, policy)
	if err != nil {
		return nil, err
	}
	return &securityState{policy: policy, issuer: issuer, verifier: verifier}, nil
}

// newVerifier hashes with the configured algorithm and still verifies the other format.
func newVerifier(cfg PasswordConfig, policy credentials.SecurityPolicy) (*password.Verifier, error) {
	bc, err := password.NewBcrypt(policy.BcryptRounds, policy.PasswordMinLength)
	if err != nil {
		return nil, err
	}
	if cfg.Algorithm == AlgorithmArgon2id {
		a, err := password.NewArgon2(cfg.Argon2, policy.PasswordMinLength)
		if err != nil {
			return nil, err
		}
		return password.NewVerifier(a, bc), nil
	}
	if a, err := password.NewArgon2(cfg.Argon2, policy.PasswordMinLength); err == nil {
		return password.NewVerifier(bc, a), nil
	}
	return password.NewVerifier(bc), nil
}

func (e *Engine) securityState() (*securityState, error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}
	st := e.state.Load()
	if st == nil {
		return nil, ErrEngineNotReady
	}
	return st, nil
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates username/password and issues a session token.
//
// Per-user rejections satisfy errors.Is(err, ErrLoginFailed) plus one of ErrAccountLocked,
// ErrInvalidCredentials or ErrUserNotFound; callers must only reveal "login failed". Store
// errors (ErrNotInitialized, ErrCorruptStore) are returned unwrapped and never satisfy
// ErrLoginFailed. Once the record update starts it completes even if ctx is cancelled.
func (e *Engine) Login(ctx context.Context, username, plaintext string) (*LoginResult, error) {
	st, err := e.securityState()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := flows.RunLogin(ctx, username, plaintext, e.loginDeps(st))
	e.metrics.Observe(MetricLoginLatency, time.Since(start))
	if err != nil {
		if IsFatal(err) {
			e.logger.Error("login aborted: credential store unavailable", "err", err)
		}
		return nil, err
	}

	id := identityFrom(res.Identity)
	return &LoginResult{Token: res.Token, Identity: id, ExpiresAt: id.ExpiresAt}, nil
}

func (e *Engine) loginDeps(st *securityState) flows.LoginDeps {
	deps := flows.LoginDeps{
		UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
		Now:                  e.now,
		ClientIPFromContext:  clientIPFromContext,
		FindRecord:           e.repo.FindByUsername,
		UpdateRecord:         e.repo.Update,
		VerifyPassword:       st.verifier.Verify,
		VerifyDummy:          st.verifier.VerifyDummy,
		PasswordNeedsUpgrade: st.verifier.NeedsUpgrade,
		HashPassword:         st.verifier.Hash,
		IssueSession:         st.issuer.Issue,
		MetricInc:            e.metricInc,
		EmitAudit:            e.emitAudit,
		Info:                 e.logInfo,
		Warn:                 e.logWarn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			AccountLocked:    int(MetricAccountLocked),
			LockedRejected:   int(MetricLoginLockedRejected),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
			AccountLocked:    auditEventAccountLocked,
			PasswordUpgraded: auditEventPasswordUpgraded,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:        ErrEngineNotReady,
			InvalidCredentials:    ErrInvalidCredentials,
			AccountLocked:         ErrAccountLocked,
			UserNotFound:          ErrUserNotFound,
			LoginRateLimited:      ErrLoginRateLimited,
			SessionCreationFailed: ErrSessionCreationFailed,
			NotFound:              ErrNotFound,
			Fail:                  loginFailure,
		},
	}
	if e.throttle != nil {
		deps.CheckLoginRate = e.checkLoginRate
		deps.RecordLoginFailure = e.recordLoginFailure
		deps.ResetLoginRate = e.resetLoginRate
	}
	return deps
}

// The throttle fails open: when Redis is unreachable the per-record lockout still applies.
func (e *Engine) checkLoginRate(ctx context.Context, username, ip string) error {
	err := e.throttle.CheckLogin(ctx, username, ip)
	if err == nil || errors.Is(err, rate.ErrRateLimited) {
		return err
	}
	e.logger.Warn("login throttle unavailable", "err", err)
	return nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, username, ip string) {
	if err := e.throttle.RecordFailure(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.Warn("login throttle unavailable", "err", err)
	}
}

func (e *Engine) resetLoginRate(ctx context.Context, username, ip string) {
	if err := e.throttle.ResetLogin(ctx, username, ip); err != nil {
		e.logger.Warn("login throttle unavailable", "err", err)
	}
}

/*
====================================
SESSIONS
====================================
*/

// ValidateSession checks a session token and confirms its subject still exists with the
// role it was issued for.
func (e *Engine) ValidateSession(ctx context.Context, token string) (Identity, error) {
	st, err := e.securityState()
	if err != nil {
		return Identity{}, err
	}

	start := time.Now()
	id, err := flows.RunValidateSession(ctx, token, flows.SessionDeps{
		Now:        e.now,
		Validate:   st.issuer.Validate,
		FindRecord: e.repo.FindByUsername,
		MetricInc:  e.metricInc,
		Metrics: flows.SessionMetrics{
			Valid:   int(MetricSessionValidated),
			Invalid: int(MetricSessionInvalid),
			Expired: int(MetricSessionExpired),
			Revoked: int(MetricSessionRevoked),
		},
		Errors: flows.SessionErrors{
			EngineNotReady: ErrEngineNotReady,
			Expired:        ErrSessionExpired,
			Revoked:        ErrSessionRevoked,
			NotFound:       ErrNotFound,
		},
	})
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	if err != nil {
		return Identity{}, err
	}
	return identityFrom(id), nil
}

// SessionTTL returns the lifetime of newly issued tokens.
func (e *Engine) SessionTTL() time.Duration {
	st, err := e.securityState()
	if err != nil {
		return 0
	}
	return st.issuer.TTL()
}

func identityFrom(id jwt.Identity) Identity {
	return Identity{
		Username:  id.Username,
		Role:      Role(id.Role),
		TokenID:   id.TokenID,
		IssuedAt:  id.IssuedAt,
		ExpiresAt: id.ExpiresAt,
	}
}

/*
====================================
SELF-SERVICE PASSWORD CHANGE
====================================
*/

// ChangePassword replaces username's password after verifying the current one. A wrong
// current password counts toward lockout like a failed login and is reported the same way.
func (e *Engine) ChangePassword(ctx context.Context, username, current, next string) error {
	st, err := e.securityState()
	if err != nil {
		return err
	}

	return flows.RunChangePassword(ctx, username, current, next, flows.ChangePasswordDeps{
		Now:            e.now,
		FindRecord:     e.repo.FindByUsername,
		UpdateRecord:   e.repo.Update,
		VerifyPassword: st.verifier.Verify,
		HashPassword:   st.verifier.Hash,
		MetricInc:      e.metricInc,
		EmitAudit:      e.emitAudit,
		Info:           e.logInfo,
		Metrics: flows.ChangePasswordMetrics{
			Success:       int(MetricPasswordChangeSuccess),
			InvalidOld:    int(MetricPasswordChangeInvalidOld),
			Reuse:         int(MetricPasswordChangeReuseRejected),
			AccountLocked: int(MetricAccountLocked),
		},
		Events: flows.ChangePasswordEvents{
			Success:       auditEventPasswordChangeSuccess,
			Failure:       auditEventPasswordChangeFailure,
			AccountLocked: auditEventAccountLocked,
		},
		Errors: flows.ChangePasswordErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			AccountLocked:      ErrAccountLocked,
			UserNotFound:       ErrUserNotFound,
			PasswordReuse:      ErrPasswordReuse,
			NotFound:           ErrNotFound,
			Fail:               loginFailure,
		},
	})
}

/*
====================================
LIFECYCLE / OBSERVABILITY
====================================
*/

// Reload re-reads the stored security policy. Processes sharing a store file call it to
// pick up a signing secret rotated elsewhere.
func (e *Engine) Reload() error {
	if e == nil || e.repo == nil {
		return ErrEngineNotReady
	}
	e.rotateMu.Lock()
	defer e.rotateMu.Unlock()

	policy, err := e.repo.Policy()
	if err != nil {
		return err
	}
	state, err := newSecurityState(e.config, policy)
	if err != nil {
		return err
	}
	e.state.Store(state)
	e.logger.Info("security policy reloaded", "path", e.repo.Path())
	return nil
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.audit.Close()
	})
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped by backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id int) {
	e.metrics.Inc(MetricID(id))
}

func (e *Engine) logInfo(msg string, keyvals ...any) {
	e.logger.Info(msg, keyvals...)
}

func (e *Engine) logWarn(msg string, keyvals ...any) {
	e.logger.Warn(msg, keyvals...)
}
