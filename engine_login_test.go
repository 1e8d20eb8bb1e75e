package adminauth

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth/password"
)

func TestLogin_SuccessIssuesValidToken(t *testing.T) {
	engine, clk, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.Login(ctx, testUser, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.Token == "" || res.Identity.Username != testUser || res.Identity.Role != RoleSuperAdmin {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if !res.ExpiresAt.Equal(clk.Now().Add(time.Hour)) {
		t.Fatalf("expected expiry now+1h, got %v", res.ExpiresAt)
	}

	id, err := engine.ValidateSession(ctx, res.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if id.Username != testUser || id.TokenID != res.Identity.TokenID {
		t.Fatalf("unexpected identity: %+v", id)
	}

	info, err := engine.GetAdmin(testUser)
	if err != nil {
		t.Fatalf("GetAdmin failed: %v", err)
	}
	if info.LastLoginAt == nil || !info.LastLoginAt.Equal(clk.Now()) {
		t.Fatalf("last login not recorded: %+v", info.LastLoginAt)
	}
	if got := engine.metrics.Value(MetricLoginSuccess); got != 1 {
		t.Fatalf("expected 1 login success metric, got %d", got)
	}
}

func TestLogin_SessionExpiresAfterTimeout(t *testing.T) {
	engine, clk, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.Login(ctx, testUser, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	clk.Advance(time.Hour - time.Second)
	if _, err := engine.ValidateSession(ctx, res.Token); err != nil {
		t.Fatalf("token should be valid just before expiry: %v", err)
	}
	clk.Advance(2 * time.Second)
	if _, err := engine.ValidateSession(ctx, res.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestLogin_LockoutScenario(t *testing.T) {
	engine, clk, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := engine.Login(ctx, testUser, "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) || !errors.Is(err, ErrLoginFailed) {
			t.Fatalf("attempt %d: expected invalid credentials login failure, got %v", i, err)
		}
	}
	info, _ := engine.GetAdmin(testUser)
	if info.FailedAttempts != 4 || info.LockedUntil != nil {
		t.Fatalf("after 4 failures: %+v", info)
	}

	_, err := engine.Login(ctx, testUser, "wrong-password")
	if !errors.Is(err, ErrAccountLocked) || !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("fifth failure: expected ErrAccountLocked, got %v", err)
	}
	info, _ = engine.GetAdmin(testUser)
	if info.FailedAttempts != 5 || info.LockedUntil == nil || !info.LockedUntil.Equal(clk.Now().Add(15*time.Minute)) {
		t.Fatalf("expected lock until now+15m: %+v", info)
	}
	if !info.Locked {
		t.Fatal("expected AdminInfo.Locked")
	}

	// Even with the correct password, login should fail while locked.
	clk.Advance(14 * time.Minute)
	if _, err := engine.Login(ctx, testUser, testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked for correct password while locked, got %v", err)
	}

	clk.Advance(time.Minute + time.Second)
	if _, err := engine.Login(ctx, testUser, testPassword); err != nil {
		t.Fatalf("login after lock expiry failed: %v", err)
	}
	info, _ = engine.GetAdmin(testUser)
	if info.FailedAttempts != 0 || info.LockedUntil != nil {
		t.Fatalf("successful login must reset counters: %+v", info)
	}
	if got := engine.metrics.Value(MetricAccountLocked); got != 1 {
		t.Fatalf("expected 1 lock transition, got %d", got)
	}
}

func TestLogin_SuccessResetsCounters(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = engine.Login(ctx, testUser, "wrong-password")
	}
	if _, err := engine.Login(ctx, testUser, testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	info, _ := engine.GetAdmin(testUser)
	if info.FailedAttempts != 0 {
		t.Fatalf("expected counters reset, got %d", info.FailedAttempts)
	}
}

func TestLogin_ConcurrentFailuresAreAllCounted(t *testing.T) {
	cfg := engineTestConfig(t)
	cfg.InitDefaults.MaxLoginAttempts = 100
	clk := newTestClock()
	initTestStore(t, cfg, clk)
	engine := buildTestEngine(t, cfg, clk)

	const k = 20
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.Login(context.Background(), testUser, "wrong-password")
		}()
	}
	wg.Wait()

	info, err := engine.GetAdmin(testUser)
	if err != nil {
		t.Fatalf("GetAdmin failed: %v", err)
	}
	if info.FailedAttempts != k {
		t.Fatalf("expected %d failed attempts, got %d", k, info.FailedAttempts)
	}
}

func TestLogin_ConcurrentFailuresCapAtLockout(t *testing.T) {
	engine, clk, _ := newTestEngine(t)

	const k = 20
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.Login(context.Background(), testUser, "wrong-password")
		}()
	}
	wg.Wait()

	info, err := engine.GetAdmin(testUser)
	if err != nil {
		t.Fatalf("GetAdmin failed: %v", err)
	}
	if info.FailedAttempts != 5 {
		t.Fatalf("expected failed attempts capped at 5, got %d", info.FailedAttempts)
	}
	if info.LockedUntil == nil || !info.LockedUntil.Equal(clk.Now().Add(15*time.Minute)) {
		t.Fatalf("expected lock until now+15m: %+v", info.LockedUntil)
	}
	if got := engine.metrics.Value(MetricAccountLocked); got != 1 {
		t.Fatalf("expected exactly 1 lock transition, got %d", got)
	}
	if got := engine.metrics.Value(MetricLoginLockedRejected); got != k-5 {
		t.Fatalf("expected %d locked rejections, got %d", k-5, got)
	}
}

func TestLogin_UnknownUserIsGenericFailure(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Login(context.Background(), "mallory", testPassword)
	if !errors.Is(err, ErrLoginFailed) || !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected unknown user login failure, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("ErrUserNotFound should wrap ErrNotFound")
	}
	if !strings.HasPrefix(err.Error(), "login failed") {
		t.Fatalf("unexpected error text: %q", err.Error())
	}
}

func TestLogin_StoreErrorsAreDistinctFromLoginFailure(t *testing.T) {
	engine, _, cfg := newTestEngine(t)
	ctx := context.Background()

	if err := os.WriteFile(cfg.StorePath, []byte(`{"admins": {}`), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, err := engine.Login(ctx, testUser, testPassword)
	if !errors.Is(err, ErrCorruptStore) || errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected bare ErrCorruptStore, got %v", err)
	}
	if !IsFatal(err) {
		t.Fatal("corrupt store should be fatal")
	}

	if err := os.Remove(cfg.StorePath); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	_, err = engine.Login(ctx, testUser, testPassword)
	if !errors.Is(err, ErrNotInitialized) || errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected bare ErrNotInitialized, got %v", err)
	}
}

func TestLogin_RehashOnLogin(t *testing.T) {
	cfg := engineTestConfig(t)
	clk := newTestClock()
	initTestStore(t, cfg, clk)

	cfg.Password.Algorithm = AlgorithmArgon2id
	cfg.Password.Argon2 = password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
	engine := buildTestEngine(t, cfg, clk)

	if _, err := engine.Login(context.Background(), testUser, testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !bytes.Contains(readFile(t, cfg.StorePath), []byte(`"$argon2id$`)) {
		t.Fatal("expected stored hash upgraded to argon2id")
	}
	if got := engine.metrics.Value(MetricPasswordUpgraded); got != 1 {
		t.Fatalf("expected 1 upgrade, got %d", got)
	}

	// The upgraded hash still verifies.
	if _, err := engine.Login(context.Background(), testUser, testPassword); err != nil {
		t.Fatalf("Login after upgrade failed: %v", err)
	}
}

func TestLogin_RehashDisabled(t *testing.T) {
	cfg := engineTestConfig(t)
	clk := newTestClock()
	initTestStore(t, cfg, clk)

	cfg.Password.Algorithm = AlgorithmArgon2id
	cfg.Password.Argon2 = password.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
	cfg.Password.UpgradeOnLogin = false
	engine := buildTestEngine(t, cfg, clk)

	if _, err := engine.Login(context.Background(), testUser, testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if bytes.Contains(readFile(t, cfg.StorePath), []byte(`"$argon2id$`)) {
		t.Fatal("hash must not change with UpgradeOnLogin disabled")
	}
}

func TestLogin_ClientIPRecordedInAudit(t *testing.T) {
	cfg := engineTestConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	clk := newTestClock()
	initTestStore(t, cfg, clk)

	sink := NewChannelSink(16)
	engine := buildTestEngine(t, cfg, clk, func(b *Builder) { b.WithAuditSink(sink) })

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	_, _ = engine.Login(ctx, testUser, "wrong-password")
	engine.Close()

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventLoginFailure || ev.Success {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.IP != "203.0.113.9" || ev.Username != testUser || ev.ID == "" {
			t.Fatalf("unexpected event fields: %+v", ev)
		}
		if ev.Error != string(auditErrInvalidCredentials) {
			t.Fatalf("unexpected error code %q", ev.Error)
		}
	default:
		t.Fatal("expected audit event")
	}
}
