package adminauth

import (
	"errors"
	"fmt"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/adminauth/credentials"
	internalaudit "github.com/MrEthical07/adminauth/internal/audit"
	"github.com/MrEthical07/adminauth/internal/logging"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/recordstore"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	auditSink AuditSink
	logger    *clog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the client used by the login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *clog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces the wall clock used for lockout decisions, token timestamps and
// store metadata.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build opens the credential store and returns a ready Engine. A missing store fails with
// [ErrNotInitialized] and an unreadable one with [ErrCorruptStore]; neither is ever
// repaired or recreated here.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Throttle.Enabled && b.redis == nil {
		return nil, fmt.Errorf("%w: throttle requires redis client", ErrInvalidConfig)
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	repo, err := credentials.Open(cfg.StorePath, storeOptions(cfg, now)...)
	if err != nil {
		logger.Error("credential store unavailable", "path", cfg.StorePath, "err", err)
		return nil, err
	}
	policy, err := repo.Policy()
	if err != nil {
		logger.Error("credential store unavailable", "path", cfg.StorePath, "err", err)
		return nil, err
	}
	state, err := newSecurityState(cfg, policy)
	if err != nil {
		logger.Error("stored security policy unusable", "path", cfg.StorePath, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	e := &Engine{
		config:  cfg,
		repo:    repo,
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
	}
	e.state.Store(state)

	if cfg.Throttle.Enabled {
		e.throttle = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Throttle.RedisPrefix,
			EnableIPThrottle: cfg.Throttle.EnableIPThrottle,
			MaxAttempts:      cfg.Throttle.MaxAttempts,
			Window:           cfg.Throttle.Window,
		})
	}

	if cfg.Audit.Enabled {
		e.audit = internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}

	b.built = true
	logger.Debug("engine ready", "path", cfg.StorePath, "throttle", cfg.Throttle.Enabled, "audit", cfg.Audit.Enabled)
	return e, nil
}

func storeOptions(cfg Config, now func() time.Time) []recordstore.Option {
	opts := []recordstore.Option{recordstore.WithClock(now)}
	if cfg.DisableFileLock {
		opts = append(opts, recordstore.WithoutFileLock())
	}
	return opts
}
