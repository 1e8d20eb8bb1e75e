package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
)

// SessionMetrics carries metric IDs needed by the session validation flow.
type SessionMetrics struct {
	Valid   int
	Invalid int
	Expired int
	Revoked int
}

// SessionErrors carries host-level sentinel errors used by the session validation flow.
type SessionErrors struct {
	EngineNotReady error
	Expired        error
	Revoked        error
	NotFound       error
}

// SessionDeps captures session validation dependencies.
type SessionDeps struct {
	Now      func() time.Time
	Validate func(token string, now time.Time) (jwt.Identity, error)
	// FindRecord, when set, confirms the token subject still exists with the same role.
	FindRecord FindRecordFunc

	MetricInc func(int)
	Metrics   SessionMetrics
	Errors    SessionErrors
}

// RunValidateSession checks token signature, claims and expiry, then the current state of
// its subject. Tokens are otherwise stateless: rotating the signing secret is the only way
// to revoke every outstanding session at once.
func RunValidateSession(_ context.Context, token string, deps SessionDeps) (jwt.Identity, error) {
	deps.Now = orNow(deps.Now)
	deps.MetricInc = orNopMetric(deps.MetricInc)
	if deps.Validate == nil {
		return jwt.Identity{}, deps.Errors.EngineNotReady
	}

	id, err := deps.Validate(token, deps.Now())
	if err != nil {
		if errors.Is(err, deps.Errors.Expired) {
			deps.MetricInc(deps.Metrics.Expired)
		} else {
			deps.MetricInc(deps.Metrics.Invalid)
		}
		return jwt.Identity{}, err
	}

	if deps.FindRecord != nil {
		rec, err := deps.FindRecord(id.Username)
		switch {
		case errors.Is(err, deps.Errors.NotFound):
			deps.MetricInc(deps.Metrics.Revoked)
			return jwt.Identity{}, deps.Errors.Revoked
		case err != nil:
			return jwt.Identity{}, err
		case string(rec.Role) != id.Role:
			deps.MetricInc(deps.Metrics.Revoked)
			return jwt.Identity{}, deps.Errors.Revoked
		}
	}

	deps.MetricInc(deps.Metrics.Valid)
	return id, nil
}
