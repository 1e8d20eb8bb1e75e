package main

import (
	"context"
	"encoding/json"
	"errors"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/adminauth"
)

func (a *app) newInitCmd() *cobra.Command {
	var (
		opts     adminauth.InitOptions
		password string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the credential store with its first super_admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordInput(password)
			if err != nil {
				return err
			}
			opts.Password = pw
			cfg := a.cfg.engineConfig()
			if err := adminauth.Initialize(cfg, opts); err != nil {
				return err
			}
			username := opts.Username
			if username == "" {
				username = adminauth.DefaultAdminUsername
			}
			a.logger.Info("credential store initialized", "path", cfg.StorePath, "username", username)
			printf(cmd.OutOrStdout(), "initialized %s with super_admin %q\n", cfg.StorePath, username)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Username, "username", adminauth.DefaultAdminUsername, "first administrator username")
	cmd.Flags().StringVar(&opts.Email, "email", "", "first administrator email")
	cmd.Flags().StringVar(&opts.DisplayName, "name", "", "first administrator display name")
	cmd.Flags().StringVar(&password, "password", "", "first administrator password (or "+passwordEnv+")")
	cmd.Flags().BoolVar(&opts.Overwrite, "force", false, "replace an existing store; every session is invalidated")
	return cmd
}

func (a *app) newAddCmd() *cobra.Command {
	var (
		in       adminauth.NewAdmin
		role     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordInput(password)
			if err != nil {
				return err
			}
			in.Username = args[0]
			in.Password = pw
			in.Role = adminauth.Role(role)
			return a.withEngine(cmd, func(ctx context.Context, e *adminauth.Engine) error {
				info, err := e.CreateAdmin(ctx, in)
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "created %s (%s)\n", info.Username, info.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(adminauth.RoleAdmin), "role: admin or super_admin")
	cmd.Flags().StringVar(&password, "password", "", "password (or "+passwordEnv+")")
	return cmd
}

func (a *app) newPasswdCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set an administrator's password and clear its lockout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordInput(password)
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(ctx context.Context, e *adminauth.Engine) error {
				if err := e.RotatePassword(ctx, args[0], pw); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "password updated for %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (or "+passwordEnv+")")
	return cmd
}

func (a *app) newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <username>",
		Short: "Clear an administrator's failed attempts and lockout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *adminauth.Engine) error {
				if err := e.Unlock(ctx, args[0]); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "unlocked %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <username>",
		Aliases: []string{"rm"},
		Short:   "Delete an administrator",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *adminauth.Engine) error {
				if err := e.RemoveAdmin(ctx, args[0]); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) newRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <username> <admin|super_admin>",
		Short: "Change an administrator's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *adminauth.Engine) error {
				info, err := e.SetRole(ctx, args[0], adminauth.Role(args[1]))
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s is now %s\n", info.Username, info.Role)
				return nil
			})
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List administrators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(_ context.Context, e *adminauth.Engine) error {
				admins, err := e.ListAdmins()
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(admins)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				printf(tw, "USERNAME\tROLE\tEMAIL\tLAST LOGIN\tFAILED\tLOCKED\n")
				for _, ad := range admins {
					printf(tw, "%s\t%s\t%s\t%s\t%d\t%t\n",
						ad.Username, ad.Role, ad.Email, formatTime(ad.LastLoginAt), ad.FailedAttempts, ad.Locked)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the credential store status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			rt, err := a.openRuntime(false)
			if err != nil {
				// An unusable store still has a status worth printing.
				_ = enc.Encode(adminauth.Status{
					Corrupt: errors.Is(err, adminauth.ErrCorruptStore),
					Error:   err.Error(),
				})
				return err
			}
			defer rt.Close()
			return enc.Encode(rt.engine.Status())
		},
	}
}

func (a *app) newRotateSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-secret",
		Short: "Replace the signing secret, invalidating every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *adminauth.Engine) error {
				if err := e.RotateSigningSecret(ctx); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "signing secret rotated; send SIGHUP to a running daemon\n")
				return nil
			})
		},
	}
}

func (a *app) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite a legacy single-admin store in the multi-admin format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(ctx context.Context, e *adminauth.Engine) error {
				migrated, err := e.MigrateStore(ctx)
				if err != nil {
					return err
				}
				if migrated {
					printf(cmd.OutOrStdout(), "store migrated\n")
				} else {
					printf(cmd.OutOrStdout(), "store already in the multi-admin format\n")
				}
				return nil
			})
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
