package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/adminauth/auditlog"
)

func (a *app) newAuditCmd() *cobra.Command {
	var (
		q      auditlog.Query
		since  time.Duration
		asJSON bool
		prune  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show or prune the audit trail",
		Long: "Reads the bbolt audit database configured by audit.path. The database is " +
			"locked while the daemon runs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sink, err := auditlog.Open(a.cfg.Audit.Path, auditlog.Options{
				ReadOnly: prune == 0,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			defer sink.Close()

			if prune > 0 {
				n, err := sink.Prune(time.Now().Add(-prune))
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "pruned %d events\n", n)
				return nil
			}

			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			events, err := sink.List(q)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}
			for _, ev := range events {
				outcome := "ok"
				if !ev.Success {
					outcome = "fail"
					if ev.Error != "" {
						outcome += ":" + ev.Error
					}
				}
				printf(cmd.OutOrStdout(), "%s  %-26s %-5s user=%s actor=%s ip=%s\n",
					ev.Timestamp.UTC().Format(time.RFC3339), ev.EventType, outcome, ev.Username, ev.Actor, ev.IP)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Username, "user", "", "only events about this username")
	cmd.Flags().StringVar(&q.EventType, "type", "", "only events of this type")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this age")
	cmd.Flags().IntVar(&q.Limit, "limit", 100, "maximum number of events; 0 for all")
	cmd.Flags().BoolVar(&q.Newest, "newest", true, "most recent first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().DurationVar(&prune, "prune-older-than", 0, "delete events older than this age instead of listing")
	return cmd
}
