package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"agentbook/internal/blob"
)

func newRootCmd(e env) *cobra.Command {
	root := &cobra.Command{
		Use:           "agentbook-admin",
		Short:         "Maintenance tasks for the agentbook record store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(e.out)
	root.AddCommand(
		newVerifyCmd(e),
		newStatsCmd(e),
		newBackupCmd(e),
		newBackupsCmd(e),
		newBackupURLCmd(e),
		newRestoreCmd(e),
	)
	return root
}

func newVerifyCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check referential integrity of the stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(ctx context.Context, rt *session) error {
				res, err := rt.service.Verify(ctx)
				if err != nil {
					return err
				}
				for _, v := range res.Violations {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s %s\t%s\n", v.Severity, v.Entity, v.EntityID, v.Message)
				}
				if res.HasBlocking() {
					return fmt.Errorf("integrity check failed with %d violation(s)", len(res.Violations))
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func newStatsCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print record counts and premium totals as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(ctx context.Context, rt *session) error {
				stats, err := rt.service.Stats(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			})
		},
	}
}

func newBackupCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Archive the current snapshot to the blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(ctx context.Context, rt *session) error {
				archive, err := rt.archive(ctx, e)
				if err != nil {
					return err
				}
				info, err := archive.Backup(ctx)
				if err != nil {
					return err
				}
				rt.log.Info().Str("key", info.Key).Int64("size_bytes", info.Size).Msg("snapshot archived")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), info.Key)
				return nil
			})
		},
	}
}

func newBackupsCmd(e env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List archived snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(ctx context.Context, rt *session) error {
				archive, err := rt.archive(ctx, e)
				if err != nil {
					return err
				}
				infos, err := archive.List(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
				for _, info := range infos {
					_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.AddCommand(newBackupsRmCmd(e), newBackupsPruneCmd(e))
	return cmd
}

func newBackupsRmCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY",
		Short: "Delete an archived snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withSession(cmd, func(ctx context.Context, rt *session) error {
				archive, err := rt.archive(ctx, e)
				if err != nil {
					return err
				}
				existed, err := archive.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if !existed {
					return fmt.Errorf("backup %s: %w", args[0], blob.ErrNotFound)
				}
				rt.log.Info().Str("key", args[0]).Msg("snapshot deleted")
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newBackupsPruneCmd(e env) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest archived snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withSession(cmd, func(ctx context.Context, rt *session) error {
				archive, err := rt.archive(ctx, e)
				if err != nil {
					return err
				}
				removed, err := archive.Prune(ctx, keep)
				if err != nil {
					return err
				}
				for _, key := range removed {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				rt.log.Info().Int("keep", keep).Int("removed", len(removed)).Msg("snapshots pruned")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 7, "number of newest snapshots to keep")
	return cmd
}

func newBackupURLCmd(e env) *cobra.Command {
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "backup-url KEY",
		Short: "Print a time-limited download link for an archived snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withSession(cmd, func(ctx context.Context, rt *session) error {
				archive, err := rt.archive(ctx, e)
				if err != nil {
					return err
				}
				url, err := archive.URL(ctx, args[0], expiry)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&expiry, "expiry", 15*time.Minute, "link lifetime")
	return cmd
}

func newRestoreCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "restore KEY",
		Short: "Replace the stored records with an archived snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withSession(cmd, func(ctx context.Context, rt *session) error {
				if !rt.durable() {
					return fmt.Errorf("restore into %s store: %w", rt.cfg.StorageDriver, errNotDurable)
				}
				archive, err := rt.archive(ctx, e)
				if err != nil {
					return err
				}
				snapshot, err := archive.Restore(ctx, args[0])
				if err != nil {
					return err
				}
				rt.log.Info().
					Str("key", args[0]).
					Int("contacts", len(snapshot.Contacts)).
					Int("contracts", len(snapshot.Contracts)).
					Msg("snapshot restored")
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "restored %d contacts, %d policies, %d contracts, %d appointments\n",
					len(snapshot.Contacts), len(snapshot.Policies), len(snapshot.Contracts), len(snapshot.Appointments))
				return nil
			})
		},
	}
}
