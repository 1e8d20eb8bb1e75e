// Command adminauth-loadtest drives concurrent logins and session checks against a
// throwaway credential store and reports latency percentiles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const loadPassword = "load-test-password"

func main() {
	var (
		admins      = flag.Int("admins", 8, "number of administrators to seed")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		ops         = flag.Int("ops", 2000, "operations per phase (login, validate)")
		wrongRatio  = flag.Int("wrong-pct", 30, "percentage of login attempts using a wrong password")
		throttle    = flag.Bool("throttle", false, "enable the redis login throttle")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		cost        = flag.Int("bcrypt-cost", bcrypt.MinCost, "bcrypt cost written into the temporary store")
	)
	flag.Parse()

	if *admins <= 0 || *concurrency <= 0 || *ops <= 0 || *wrongRatio < 0 || *wrongRatio > 100 {
		fmt.Fprintln(os.Stderr, "admins, concurrency, and ops must be > 0; wrong-pct must be within [0,100]")
		os.Exit(2)
	}

	dir, err := os.MkdirTemp("", "adminauth-loadtest-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	cfg := adminauth.DefaultConfig()
	cfg.StorePath = filepath.Join(dir, "admin-config.json")
	cfg.InitDefaults.BcryptRounds = *cost
	// Lockout would turn most of the run into locked rejections.
	cfg.InitDefaults.MaxLoginAttempts = 1 << 30
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	builder := adminauth.New().WithConfig(cfg).WithLogger(logging.Discard())
	if *throttle {
		client, cleanup, err := redisClient(*redisAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		cfg.Throttle.Enabled = true
		cfg.Throttle.MaxAttempts = 1 << 30
		builder = builder.WithConfig(cfg).WithRedis(client)
	}

	usernames, err := seed(cfg, *admins)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	engine, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	loginStats, tokens := runLoginPhase(ctx, engine, usernames, *ops, *concurrency, *wrongRatio)
	validateStats := runValidatePhase(ctx, engine, tokens, *ops, *concurrency)
	burstStats, counted, err := runBurstPhase(ctx, engine, usernames[0], *concurrency*4, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "burst phase: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("validate", validateStats)
	printStats("burst", burstStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("counters: success=%d failure=%d locked=%d\n",
		snap.Counters[adminauth.MetricLoginSuccess],
		snap.Counters[adminauth.MetricLoginFailure],
		snap.Counters[adminauth.MetricAccountLocked],
	)
	if counted != burstStats.ops {
		fmt.Fprintf(os.Stderr, "lost updates: %d concurrent failures, %d recorded\n", burstStats.ops, counted)
		os.Exit(1)
	}
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seed(cfg adminauth.Config, n int) ([]string, error) {
	cfg.Throttle.Enabled = false
	if err := adminauth.Initialize(cfg, adminauth.InitOptions{Username: "load-0", Password: loadPassword}); err != nil {
		return nil, err
	}
	engine, err := adminauth.New().WithConfig(cfg).WithLogger(logging.Discard()).Build()
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	names := []string{"load-0"}
	for i := 1; i < n; i++ {
		name := fmt.Sprintf("load-%d", i)
		if _, err := engine.CreateAdmin(context.Background(), adminauth.NewAdmin{Username: name, Password: loadPassword}); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func runLoginPhase(ctx context.Context, engine *adminauth.Engine, usernames []string, ops, concurrency, wrongPct int) (phaseStats, []string) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		tokens    []string
		mu        sync.Mutex
	)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				user := usernames[r.Intn(len(usernames))]
				pw := loadPassword
				if r.Intn(100) < wrongPct {
					pw = "wrong-password"
				}
				t0 := time.Now()
				res, err := engine.Login(ctx, user, pw)
				d := time.Since(t0)
				if err != nil && !errors.Is(err, adminauth.ErrLoginFailed) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				if res != nil {
					tokens = append(tokens, res.Token)
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures), tokens
}

// runBurstPhase races n wrong-password logins against one freshly unlocked record and
// returns the failure count the record ends up with.
func runBurstPhase(ctx context.Context, engine *adminauth.Engine, username string, n, concurrency int) (phaseStats, int, error) {
	if err := engine.Unlock(ctx, username); err != nil {
		return phaseStats{}, 0, err
	}
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, n)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if int(atomic.AddInt64(&cursor, 1)) > n {
					return
				}
				t0 := time.Now()
				_, err := engine.Login(ctx, username, "wrong-password")
				d := time.Since(t0)
				if !errors.Is(err, adminauth.ErrInvalidCredentials) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)

	info, err := engine.GetAdmin(username)
	if err != nil {
		return phaseStats{}, 0, err
	}
	return computeStats(total, latencies, failures), info.FailedAttempts, nil
}

func runValidatePhase(ctx context.Context, engine *adminauth.Engine, tokens []string, ops, concurrency int) phaseStats {
	if len(tokens) == 0 {
		return phaseStats{}
	}
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := engine.ValidateSession(ctx, tokens[r.Intn(len(tokens))])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d errors=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
