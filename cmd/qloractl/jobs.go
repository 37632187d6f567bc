package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qlora-pipeline/controlplane/internal/client"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

func newJobsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and inspect jobs",
	}
	cmd.AddCommand(newJobsListCmd(c), newJobsGetCmd(c), newJobsStatsCmd(c), newJobsLogsCmd(c))
	return cmd
}

func newJobsListCmd(c *cli) *cobra.Command {
	var kind, status, filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := client.ListOptions{Kind: model.JobKind(kind), Status: model.JobStatus(status), Filter: filter}
			if kind != "" && !opts.Kind.Valid() {
				return fmt.Errorf("invalid --kind %q", kind)
			}
			if status != "" && !opts.Status.Valid() {
				return fmt.Errorf("invalid --status %q", status)
			}

			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			jobs, err := cl.ListJobs(ctx, opts)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, jobs)
			}
			return printJobs(c.out, jobs)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only jobs of this kind (train, evaluate, merge, publish)")
	cmd.Flags().StringVar(&status, "status", "", "only jobs in this status (pending, running, completed, failed)")
	cmd.Flags().StringVar(&filter, "filter", "", "JMESPath expression evaluated against each job")
	return cmd
}

func newJobsGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			j, err := cl.GetJob(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, j)
			}
			return printJob(c.out, j)
		},
	}
}

func newJobsStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count jobs per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := c.requestContext(cmd)
			defer cancel()

			stats, err := cl.Stats(ctx)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, stats)
			}
			return printStats(c.out, stats)
		},
	}
}

func newJobsLogsCmd(c *cli) *cobra.Command {
	var (
		since    int
		follow   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Print a job's log, optionally following it until the job finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if since < 0 {
				return fmt.Errorf("--since must be >= 0")
			}
			cl, err := c.client()
			if err != nil {
				return err
			}

			if follow {
				j, err := cl.Follow(cmd.Context(), args[0], client.FollowOptions{
					Since:    since,
					Interval: interval,
					Line:     func(line string) { fmt.Fprintln(c.out, line) },
				})
				if err != nil {
					return err
				}
				if j.Status() == model.JobStatusFailed {
					return fmt.Errorf("%w: %s", errJobFailed, j.ID)
				}
				return nil
			}

			ctx, cancel := c.requestContext(cmd)
			defer cancel()
			page, err := cl.Logs(ctx, args[0], since)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.out, page)
			}
			if page.Reset {
				fmt.Fprintln(c.out, client.ResetMarker(page.Dropped))
			}
			for _, line := range page.Logs {
				fmt.Fprintln(c.out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&since, "since", 0, "absolute line offset to start from")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new lines until the job finishes")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval in follow mode")
	return cmd
}
