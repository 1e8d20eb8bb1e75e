package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := New(rdb, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: unexpected check error: %v", i+1, err)
		}
		if err := l.RecordFailure(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: unexpected record error: %v", i+1, err)
		}
	}
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("other usernames must not be affected: %v", err)
	}

	if ttl := mr.TTL("aal:u:alice"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestLimiterIPThrottle(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, Config{Prefix: "t", EnableIPThrottle: true, MaxAttempts: 2, Window: time.Minute})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "a", "10.0.0.1")
	_ = l.RecordFailure(ctx, "b", "10.0.0.1")
	if err := l.CheckLogin(ctx, "c", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget to block, got %v", err)
	}
	if err := l.CheckLogin(ctx, "c", "10.0.0.2"); err != nil {
		t.Fatalf("other IPs must not be affected: %v", err)
	}
	if err := l.RecordFailure(ctx, "c", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected over-budget record to report ErrRateLimited, got %v", err)
	}
}

func TestLimiterResetAndAttempts(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, Config{MaxAttempts: 5, Window: time.Minute})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "alice", "")
	_ = l.RecordFailure(ctx, "alice", "")
	if n, err := l.Attempts(ctx, "alice"); err != nil || n != 2 {
		t.Fatalf("Attempts: n=%d err=%v", n, err)
	}
	if err := l.ResetLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if n, err := l.Attempts(ctx, "alice"); err != nil || n != 0 {
		t.Fatalf("Attempts after reset: n=%d err=%v", n, err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := New(rdb, Config{MaxAttempts: 5, Window: time.Minute})
	mr.Close()

	if err := l.RecordFailure(context.Background(), "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestNilLimiterIsNoop(t *testing.T) {
	var l *Limiter
	ctx := context.Background()
	if err := l.CheckLogin(ctx, "a", "b"); err != nil {
		t.Fatalf("nil CheckLogin: %v", err)
	}
	if err := l.RecordFailure(ctx, "a", "b"); err != nil {
		t.Fatalf("nil RecordFailure: %v", err)
	}
	if err := l.ResetLogin(ctx, "a", "b"); err != nil {
		t.Fatalf("nil ResetLogin: %v", err)
	}
}
