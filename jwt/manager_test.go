package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := Config{
		Secret:     []byte(strings.Repeat("5e", 64)),
		SessionTTL: time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueValidateExpiryBoundary(t *testing.T) {
	m := newTestManager(t, nil)

	token, issued, err := m.Issue("alice", "admin", t0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !issued.ExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", issued.ExpiresAt)
	}

	id, err := m.Validate(token, t0.Add(time.Hour-time.Second))
	if err != nil {
		t.Fatalf("expected token valid just before expiry: %v", err)
	}
	if id.Username != "alice" || id.Role != "admin" || id.TokenID != issued.TokenID || id.TokenID == "" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.IssuedAt.Equal(t0) {
		t.Fatalf("unexpected issued at: %v", id.IssuedAt)
	}

	if _, err := m.Validate(token, t0.Add(time.Hour+time.Second)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired just after expiry, got %v", err)
	}
}

func TestIssueSubSecondNowNeverExpiresEarly(t *testing.T) {
	m := newTestManager(t, nil)
	now := t0.Add(700 * time.Millisecond)

	token, issued, err := m.Issue("alice", "admin", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !issued.IssuedAt.Equal(t0) {
		t.Fatalf("expected iat truncated to %v, got %v", t0, issued.IssuedAt)
	}
	if !issued.ExpiresAt.Equal(t0.Add(time.Hour + time.Second)) {
		t.Fatalf("expected exp rounded up, got %v", issued.ExpiresAt)
	}

	if _, err := m.Validate(token, now.Add(time.Hour-100*time.Millisecond)); err != nil {
		t.Fatalf("expected token valid just before now+TTL: %v", err)
	}
	if _, err := m.Validate(token, now.Add(time.Hour+time.Second)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after the rounded expiry, got %v", err)
	}
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	m := newTestManager(t, nil)
	rotated := newTestManager(t, func(c *Config) { c.Secret = []byte(strings.Repeat("a7", 64)) })

	token, _, err := m.Issue("alice", "admin", t0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := rotated.Validate(token, t0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid after rotation, got %v", err)
	}
}

func TestValidateRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, nil)

	claims := SessionClaims{Username: "alice", Role: "admin", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: gjwt.NewNumericDate(t0.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(t0),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString([]byte(strings.Repeat("5e", 64)))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Validate(token, t0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for HS512, got %v", err)
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := m.Validate(none, t0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for alg=none, got %v", err)
	}
}

func TestValidateIssuerAudienceAndLeeway(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.Issuer = "adminauth"
		c.Audience = "admin-api"
		c.Leeway = 30 * time.Second
	})

	token, _, err := m.Issue("root", "super_admin", t0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Validate(token, t0.Add(time.Hour+10*time.Second)); err != nil {
		t.Fatalf("expected leeway to accept slightly expired token: %v", err)
	}
	if _, err := m.Validate(token, t0.Add(time.Hour+time.Minute)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired beyond leeway, got %v", err)
	}

	other := newTestManager(t, func(c *Config) { c.Issuer = "someone-else"; c.Audience = "admin-api" })
	foreign, _, err := other.Issue("root", "super_admin", t0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Validate(foreign, t0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong issuer, got %v", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	m := newTestManager(t, nil)
	for _, tok := range []string{"", "abc", "a.b.c", strings.Repeat("x", 4096)} {
		if _, err := m.Validate(tok, t0); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Validate(%q): expected ErrInvalid, got %v", tok, err)
		}
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short"), SessionTTL: time.Hour}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewManager(Config{Secret: []byte(strings.Repeat("k", 32))}); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
	if _, err := NewManager(Config{Secret: []byte(strings.Repeat("k", 32)), SessionTTL: time.Hour, Leeway: time.Hour}); err == nil {
		t.Fatal("expected large leeway to be rejected")
	}
	if _, _, err := newTestManager(t, nil).Issue("", "admin", t0); err == nil {
		t.Fatal("expected empty username to be rejected")
	}
}

func FuzzValidate(f *testing.F) {
	m, err := NewManager(Config{Secret: []byte(strings.Repeat("f", 32)), SessionTTL: time.Minute})
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := m.Issue("fuzz", "admin", t0)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add("")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, token string) {
		id, err := m.Validate(token, t0)
		if err == nil && id.Username == "" {
			t.Fatal("valid token without username")
		}
	})
}
