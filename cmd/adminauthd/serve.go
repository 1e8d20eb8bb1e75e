package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/adminauth/httpapi"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin authentication API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
			if err != nil {
				return err
			}
			return a.serve(ctx, ln)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	return cmd
}

// serve runs the API on ln until ctx is done. SIGHUP reloads the security policy from
// the store so a secret rotated by another process takes effect.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	rt, err := a.openRuntime(true)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer rt.Close()

	if rt.redis != nil {
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			a.logger.Warn("redis unreachable, login throttle will fail open", "addr", a.cfg.Redis.Addr, "err", err)
		}
	}

	router, err := httpapi.NewRouter(rt.engine, httpapi.Options{
		CookieSecure:   a.cfg.HTTP.CookieSecure,
		CookieDomain:   a.cfg.HTTP.CookieDomain,
		TrustedProxies: a.cfg.HTTP.TrustedProxies,
		DisableMetrics: a.cfg.HTTP.DisableMetrics,
		Logger:         a.logger,
	})
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info("listening", "addr", ln.Addr().String(), "store", a.cfg.Store.Path)

	for {
		select {
		case <-hup:
			if err := rt.engine.Reload(); err != nil {
				a.logger.Error("reload failed", "err", err)
			} else {
				a.logger.Info("security policy reloaded")
			}
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
			err := srv.Shutdown(shutdownCtx)
			cancel()
			return err
		}
	}
}
