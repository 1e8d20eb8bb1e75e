// Command adminauthd serves the admin authentication API and manages the credential store
// from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	clog "github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/auditlog"
	"github.com/MrEthical07/adminauth/internal/logging"
)

var version = "dev"

// cliActor is recorded as the actor of every change made through the admin commands.
const cliActor = "cli"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the per-invocation state shared by the subcommands.
type app struct {
	viper      *viper.Viper
	configFile string
	cfg        daemonConfig
	logger     *clog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{viper: viper.New()}

	root := &cobra.Command{
		Use:           "adminauthd",
		Short:         "Admin authentication daemon and credential store tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default ./adminauthd.yaml)")
	root.PersistentFlags().String("store", "", "credential store path")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		a.newServeCmd(),
		a.newInitCmd(),
		a.newAddCmd(),
		a.newPasswdCmd(),
		a.newUnlockCmd(),
		a.newRemoveCmd(),
		a.newRoleCmd(),
		a.newListCmd(),
		a.newStatusCmd(),
		a.newRotateSecretCmd(),
		a.newMigrateCmd(),
		a.newAuditCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.viper, a.configFile, cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// stack is an engine with the collaborators built from the daemon config.
type stack struct {
	engine *adminauth.Engine
	redis  redis.UniversalClient
	audit  *auditlog.BoltSink
}

func (r *stack) Close() {
	r.engine.Close()
	if r.audit != nil {
		_ = r.audit.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
}

// openRuntime builds the engine. The admin commands pass required=false for the audit
// database so they keep working while a running daemon holds it.
func (a *app) openRuntime(auditRequired bool) (*stack, error) {
	cfg := a.cfg.engineConfig()
	rt := &stack{}

	b := adminauth.New().WithLogger(a.logger)

	if cfg.Audit.Enabled {
		sink, err := auditlog.Open(a.cfg.Audit.Path, auditlog.Options{Logger: a.logger})
		switch {
		case err == nil:
			rt.audit = sink
			b.WithAuditSink(sink)
		case auditRequired:
			return nil, fmt.Errorf("open audit log: %w", err)
		default:
			a.logger.Warn("audit log unavailable, continuing without it", "path", a.cfg.Audit.Path, "err", err)
			cfg.Audit.Enabled = false
		}
	}

	if cfg.Throttle.Enabled {
		rt.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{a.cfg.Redis.Addr},
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		b.WithRedis(rt.redis)
	}

	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		if rt.audit != nil {
			_ = rt.audit.Close()
		}
		if rt.redis != nil {
			_ = rt.redis.Close()
		}
		return nil, err
	}
	rt.engine = engine
	return rt, nil
}

// withEngine runs fn against a freshly built engine with the CLI actor in ctx.
func (a *app) withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *adminauth.Engine) error) error {
	rt, err := a.openRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(adminauth.WithActor(cmd.Context(), cliActor), rt.engine)
}

// passwordInput returns the flag value, falling back to ADMINAUTH_ADMIN_PASSWORD. The name has
// no matching config key, so AutomaticEnv never reads it as the password section.
func passwordInput(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v, ok := os.LookupEnv(passwordEnv); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("password required: pass --password or set %s", passwordEnv)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
