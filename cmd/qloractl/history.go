package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/qlora-pipeline/controlplane/internal/bootstrap"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

func newHistoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune archived jobs",
	}
	cmd.AddCommand(newHistoryListCmd(c), newHistoryPruneCmd(c))
	return cmd
}

func newHistoryListCmd(c *cli) *cobra.Command {
	var (
		kind, status  string
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := model.HistoryListOptions{
				Kind:   model.JobKind(kind),
				Status: model.JobStatus(status),
				Limit:  limit,
				Offset: offset,
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			entries, err := cl.History(ctx, opts)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, entries)
			}
			return printHistory(c.out, entries)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only entries of this job kind")
	cmd.Flags().StringVar(&status, "status", "", "completed or failed")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size (max 500)")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}

// newHistoryPruneCmd talks to the archive directly, using the server's environment configuration.
func newHistoryPruneCmd(c *cli) *cobra.Command {
	var (
		olderThan time.Duration
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archived jobs that finished before a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			if !yes {
				return fmt.Errorf("refusing to delete without --yes")
			}

			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			logger := slog.Default()
			repo, closeRepo, err := bootstrap.OpenHistoryStore(&cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeRepo(); cerr != nil {
					logger.Warn("close history store failed", "error", cerr)
				}
			}()

			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			cutoff := time.Now().Add(-olderThan)
			n, err := repo.DeleteBefore(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("prune history: %w", err)
			}
			fmt.Fprintf(c.out, "deleted %d entries finished before %s\n", n, formatTime(cutoff))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "delete entries that finished longer ago than this")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
