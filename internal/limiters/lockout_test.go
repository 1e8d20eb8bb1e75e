package limiters

import (
	"testing"
	"time"
)

var (
	t0     = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	policy = Policy{MaxAttempts: 5, Duration: 15 * time.Minute}
)

func at(d time.Duration) *time.Time {
	v := t0.Add(d)
	return &v
}

func TestDecideTable(t *testing.T) {
	tests := []struct {
		name        string
		cur         Attempts
		now         time.Time
		success     bool
		wantAllowed bool
		wantLocked  bool
		wantJust    bool
		wantNext    Attempts
	}{
		{
			name:        "clean success",
			cur:         Attempts{},
			now:         t0,
			success:     true,
			wantAllowed: true,
		},
		{
			name:     "first failure",
			cur:      Attempts{},
			now:      t0,
			wantNext: Attempts{Failed: 1},
		},
		{
			name:        "success resets accumulated failures",
			cur:         Attempts{Failed: 3},
			now:         t0,
			success:     true,
			wantAllowed: true,
		},
		{
			name:     "threshold failure locks",
			cur:      Attempts{Failed: 4},
			now:      t0,
			wantJust: true,
			wantNext: Attempts{Failed: 5, LockedUntil: at(15 * time.Minute)},
		},
		{
			name:       "active lock rejects correct password",
			cur:        Attempts{Failed: 5, LockedUntil: at(time.Minute)},
			now:        t0,
			success:    true,
			wantLocked: true,
			wantNext:   Attempts{Failed: 5, LockedUntil: at(time.Minute)},
		},
		{
			name:       "active lock leaves counters on failure",
			cur:        Attempts{Failed: 5, LockedUntil: at(time.Minute)},
			now:        t0,
			wantLocked: true,
			wantNext:   Attempts{Failed: 5, LockedUntil: at(time.Minute)},
		},
		{
			name:        "expired lock success clears",
			cur:         Attempts{Failed: 5, LockedUntil: at(-time.Second)},
			now:         t0,
			success:     true,
			wantAllowed: true,
		},
		{
			name:     "expired lock failure relocks",
			cur:      Attempts{Failed: 5, LockedUntil: at(-time.Second)},
			now:      t0,
			wantJust: true,
			wantNext: Attempts{Failed: 6, LockedUntil: at(15 * time.Minute)},
		},
		{
			name:        "lock deadline is exclusive",
			cur:         Attempts{Failed: 5, LockedUntil: at(0)},
			now:         t0,
			success:     true,
			wantAllowed: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := policy.Decide(tc.cur, tc.now, tc.success)
			if d.Allowed != tc.wantAllowed || d.Locked != tc.wantLocked || d.JustLocked != tc.wantJust {
				t.Fatalf("flags: got allowed=%v locked=%v just=%v", d.Allowed, d.Locked, d.JustLocked)
			}
			if d.Next.Failed != tc.wantNext.Failed {
				t.Fatalf("failed: got %d want %d", d.Next.Failed, tc.wantNext.Failed)
			}
			switch {
			case tc.wantNext.LockedUntil == nil && d.Next.LockedUntil != nil:
				t.Fatalf("expected no lock, got %v", *d.Next.LockedUntil)
			case tc.wantNext.LockedUntil != nil && (d.Next.LockedUntil == nil || !d.Next.LockedUntil.Equal(*tc.wantNext.LockedUntil)):
				t.Fatalf("lockedUntil: got %v want %v", d.Next.LockedUntil, *tc.wantNext.LockedUntil)
			}
		})
	}
}

func TestDecideSequenceLocksAfterMax(t *testing.T) {
	cur := Attempts{}
	now := t0
	for i := 1; i <= policy.MaxAttempts; i++ {
		d := policy.Decide(cur, now, false)
		if d.Allowed {
			t.Fatalf("attempt %d should fail", i)
		}
		cur = d.Next
		now = now.Add(time.Second)
	}
	if Classify(cur) != StateLocked {
		t.Fatalf("expected locked after %d failures, got %s", policy.MaxAttempts, Classify(cur))
	}

	if d := policy.Decide(cur, now, true); !d.Locked || d.Allowed {
		t.Fatalf("correct password during lock must be rejected: %+v", d)
	}

	after := cur.LockedUntil.Add(time.Millisecond)
	d := policy.Decide(cur, after, true)
	if !d.Allowed || Classify(d.Next) != StateClean {
		t.Fatalf("expected clean success after lock expiry: %+v", d)
	}
}

func TestClassify(t *testing.T) {
	if Classify(Attempts{}) != StateClean {
		t.Fatal("expected clean")
	}
	if Classify(Attempts{Failed: 2}) != StateAccumulating {
		t.Fatal("expected accumulating")
	}
	if Classify(Attempts{Failed: 5, LockedUntil: at(0)}) != StateLocked {
		t.Fatal("expected locked")
	}
}

func TestPreCheck(t *testing.T) {
	if d := policy.PreCheck(Attempts{Failed: 5, LockedUntil: at(time.Minute)}, t0); d.Allowed || !d.Locked {
		t.Fatalf("expected pre-check rejection: %+v", d)
	}
	if d := policy.PreCheck(Attempts{Failed: 2}, t0); !d.Allowed {
		t.Fatalf("expected pre-check to pass: %+v", d)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := (Policy{}).Validate(); err == nil {
		t.Fatal("expected zero policy to be invalid")
	}
	if err := policy.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
