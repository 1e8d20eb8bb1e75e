package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/adminauth"
)

const (
	envPrefix   = "ADMINAUTH"
	configName  = "adminauthd"
	passwordEnv = "ADMINAUTH_ADMIN_PASSWORD"
)

// daemonConfig is the on-disk and environment shape of the daemon settings.
type daemonConfig struct {
	Store    storeConfig    `mapstructure:"store"`
	Log      logConfig      `mapstructure:"log"`
	HTTP     httpConfig     `mapstructure:"http"`
	JWT      jwtConfig      `mapstructure:"jwt"`
	Password passwordConfig `mapstructure:"password"`
	Redis    redisConfig    `mapstructure:"redis"`
	Throttle throttleConfig `mapstructure:"throttle"`
	Audit    auditConfig    `mapstructure:"audit"`
	Metrics  metricsConfig  `mapstructure:"metrics"`
	Init     initConfig     `mapstructure:"init"`
}

type storeConfig struct {
	Path        string `mapstructure:"path"`
	DisableLock bool   `mapstructure:"disable_lock"`
	Version     string `mapstructure:"version"`
}

type logConfig struct {
	Level string `mapstructure:"level"`
}

type httpConfig struct {
	Addr              string        `mapstructure:"addr"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
	CookieDomain      string        `mapstructure:"cookie_domain"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	DisableMetrics    bool          `mapstructure:"disable_metrics"`
}

type jwtConfig struct {
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	Leeway   time.Duration `mapstructure:"leeway"`
}

type passwordConfig struct {
	Algorithm      string       `mapstructure:"algorithm"`
	UpgradeOnLogin bool         `mapstructure:"upgrade_on_login"`
	Argon2         argon2Config `mapstructure:"argon2"`
}

type argon2Config struct {
	Memory      uint32 `mapstructure:"memory"`
	Time        uint32 `mapstructure:"time"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type redisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type throttleConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	PerIP       bool          `mapstructure:"per_ip"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
	Prefix      string        `mapstructure:"prefix"`
}

type auditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	BufferSize int    `mapstructure:"buffer_size"`
	DropIfFull bool   `mapstructure:"drop_if_full"`
}

type metricsConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Latencies bool `mapstructure:"latencies"`
}

type initConfig struct {
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	MaxLoginAttempts  int           `mapstructure:"max_login_attempts"`
	LockoutDuration   time.Duration `mapstructure:"lockout_duration"`
	PasswordMinLength int           `mapstructure:"password_min_length"`
	BcryptRounds      int           `mapstructure:"bcrypt_rounds"`
}

func setDefaults(v *viper.Viper) {
	d := adminauth.DefaultConfig()

	v.SetDefault("store.path", d.StorePath)
	v.SetDefault("store.disable_lock", d.DisableFileLock)
	v.SetDefault("store.version", d.Version)

	v.SetDefault("log.level", "info")

	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.cookie_secure", false)
	v.SetDefault("http.cookie_domain", "")
	v.SetDefault("http.trusted_proxies", []string{})
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.disable_metrics", false)

	v.SetDefault("jwt.issuer", d.JWT.Issuer)
	v.SetDefault("jwt.audience", d.JWT.Audience)
	v.SetDefault("jwt.leeway", d.JWT.Leeway)

	v.SetDefault("password.algorithm", d.Password.Algorithm)
	v.SetDefault("password.upgrade_on_login", d.Password.UpgradeOnLogin)
	v.SetDefault("password.argon2.memory", d.Password.Argon2.Memory)
	v.SetDefault("password.argon2.time", d.Password.Argon2.Time)
	v.SetDefault("password.argon2.parallelism", d.Password.Argon2.Parallelism)
	v.SetDefault("password.argon2.salt_length", d.Password.Argon2.SaltLength)
	v.SetDefault("password.argon2.key_length", d.Password.Argon2.KeyLength)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("throttle.enabled", d.Throttle.Enabled)
	v.SetDefault("throttle.per_ip", d.Throttle.EnableIPThrottle)
	v.SetDefault("throttle.max_attempts", d.Throttle.MaxAttempts)
	v.SetDefault("throttle.window", d.Throttle.Window)
	v.SetDefault("throttle.prefix", d.Throttle.RedisPrefix)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.path", "data/audit.db")
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.latencies", true)

	v.SetDefault("init.session_timeout", d.InitDefaults.SessionTimeout)
	v.SetDefault("init.max_login_attempts", d.InitDefaults.MaxLoginAttempts)
	v.SetDefault("init.lockout_duration", d.InitDefaults.LockoutDuration)
	v.SetDefault("init.password_min_length", d.InitDefaults.PasswordMinLength)
	v.SetDefault("init.bcrypt_rounds", d.InitDefaults.BcryptRounds)
}

// flagKeys maps command-line flags onto viper keys. Only flags present on the running
// command are bound.
var flagKeys = map[string]string{
	"store":     "store.path",
	"log-level": "log.level",
	"addr":      "http.addr",
}

// loadConfig reads adminauthd.yaml (or the explicit file), ADMINAUTH_* variables and the
// bound flags, in increasing order of precedence.
func loadConfig(v *viper.Viper, configFile string, cmd *cobra.Command) (daemonConfig, error) {
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/adminauth")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return daemonConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return daemonConfig{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg daemonConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return daemonConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// engineConfig maps the daemon settings onto the engine configuration.
func (c daemonConfig) engineConfig() adminauth.Config {
	cfg := adminauth.DefaultConfig()
	cfg.StorePath = c.Store.Path
	cfg.DisableFileLock = c.Store.DisableLock
	cfg.Version = c.Store.Version

	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience
	cfg.JWT.Leeway = c.JWT.Leeway

	cfg.Password.Algorithm = c.Password.Algorithm
	cfg.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin
	cfg.Password.Argon2.Memory = c.Password.Argon2.Memory
	cfg.Password.Argon2.Time = c.Password.Argon2.Time
	cfg.Password.Argon2.Parallelism = c.Password.Argon2.Parallelism
	cfg.Password.Argon2.SaltLength = c.Password.Argon2.SaltLength
	cfg.Password.Argon2.KeyLength = c.Password.Argon2.KeyLength

	cfg.Throttle.Enabled = c.Throttle.Enabled
	cfg.Throttle.EnableIPThrottle = c.Throttle.PerIP
	cfg.Throttle.MaxAttempts = c.Throttle.MaxAttempts
	cfg.Throttle.Window = c.Throttle.Window
	cfg.Throttle.RedisPrefix = c.Throttle.Prefix

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull

	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Latencies

	cfg.InitDefaults.SessionTimeout = c.Init.SessionTimeout
	cfg.InitDefaults.MaxLoginAttempts = c.Init.MaxLoginAttempts
	cfg.InitDefaults.LockoutDuration = c.Init.LockoutDuration
	cfg.InitDefaults.PasswordMinLength = c.Init.PasswordMinLength
	cfg.InitDefaults.BcryptRounds = c.Init.BcryptRounds
	return cfg
}
