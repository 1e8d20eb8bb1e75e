package adminauth

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth/internal/logging"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUser     = "alice"
	testPassword = "correct-horse"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// engineTestConfig returns a config whose store lives in a temp dir and whose stored
// policy uses the cheapest bcrypt cost.
func engineTestConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StorePath = filepath.Join(t.TempDir(), "admin-config.json")
	cfg.InitDefaults.BcryptRounds = bcrypt.MinCost
	cfg.Metrics.Enabled = true
	return cfg
}

func initTestStore(t *testing.T, cfg Config, clk *testClock) {
	t.Helper()
	err := initialize(cfg, InitOptions{Username: testUser, Password: testPassword, Email: "alice@example.com"}, clk.Now)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
}

func buildTestEngine(t *testing.T, cfg Config, clk *testClock, configure ...func(*Builder)) *Engine {
	t.Helper()
	b := New().WithConfig(cfg).WithLogger(logging.Discard()).WithClock(clk.Now)
	for _, fn := range configure {
		fn(b)
	}
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func newTestEngine(t *testing.T) (*Engine, *testClock, Config) {
	t.Helper()
	cfg := engineTestConfig(t)
	clk := newTestClock()
	initTestStore(t, cfg, clk)
	return buildTestEngine(t, cfg, clk), clk, cfg
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return data
}
