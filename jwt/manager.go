package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrExpired is returned for a well-formed, correctly signed token past its expiry.
	ErrExpired = errors.New("session token expired")
	// ErrInvalid is returned for any other validation failure.
	ErrInvalid = errors.New("session token invalid")
)

const minSecretLength = 16

// Config configures a [Manager].
type Config struct {
	// Secret is the HMAC key.
	Secret     []byte
	SessionTTL time.Duration
	Issuer     string
	Audience   string
	// Leeway tolerates clock skew on exp/iat, at most two minutes.
	Leeway time.Duration
}

// SessionClaims is the token payload.
type SessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated subject carried by a valid token.
type Identity struct {
	Username  string
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager signs and validates session tokens.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager. The secret is copied.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", minSecretLength)
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("jwt: invalid session TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway")
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)
	return &Manager{config: cfg}, nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.SessionTTL
}

// Issue signs a token for username/role valid from now until now+TTL. JWT date claims
// have whole-second resolution: iat is truncated and exp is rounded up, so the token never
// expires before now+TTL.
func (m *Manager) Issue(username, role string, now time.Time) (string, Identity, error) {
	if username == "" || role == "" {
		return "", Identity{}, errors.New("jwt: username and role are required")
	}

	issued := now.Truncate(time.Second)
	id := Identity{
		Username:  username,
		Role:      role,
		TokenID:   uuid.NewString(),
		IssuedAt:  issued,
		ExpiresAt: ceilSecond(now.Add(m.config.SessionTTL)),
	}
	claims := SessionClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        id.TokenID,
			IssuedAt:  jwt.NewNumericDate(id.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, id, nil
}

func ceilSecond(t time.Time) time.Time {
	down := t.Truncate(time.Second)
	if down.Equal(t) {
		return down
	}
	return down.Add(time.Second)
}

// Validate checks signature, algorithm, expiry, and optional issuer/audience as of now.
func (m *Manager) Validate(token string, now time.Time) (Identity, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalid
	}
	if claims.Username == "" || claims.Role == "" || claims.Subject != claims.Username {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalid)
	}

	id := Identity{
		Username:  claims.Username,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	return id, nil
}
