// Command qloractl drives a running control plane over its HTTP API and runs
// administrative tasks against the history store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qlora-pipeline/controlplane/internal/client"
)

const defaultServer = "http://localhost:8000"

// errJobFailed makes the process exit non-zero when a followed job fails.
var errJobFailed = errors.New("job failed")

type cli struct {
	out io.Writer
	err io.Writer

	server     string
	timeout    time.Duration
	retryLimit uint64
	jsonOutput bool

	// newClient is swapped in tests.
	newClient func(opts client.Options) (*client.Client, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&cli{out: os.Stdout, err: os.Stderr, newClient: client.New})
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("qloractl failed", "err", err)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command failure to the shell
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "qloractl",
		Short:         "Submit and inspect QLoRA pipeline jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.SetErr(c.err)

	server := os.Getenv("QLORA_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&c.server, "server", server, "control plane base URL (env QLORA_SERVER)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "per-request timeout")
	root.PersistentFlags().Uint64Var(&c.retryLimit, "retries", 3, "retries for read requests")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print raw JSON instead of tables")

	root.AddCommand(
		newJobsCmd(c),
		newTrainCmd(c),
		newParamsCmd(c),
		newEvaluateCmd(c),
		newMergeCmd(c),
		newPublishCmd(c),
		newResultsCmd(c),
		newAdaptersCmd(c),
		newCatalogCmd(c),
		newHistoryCmd(c),
		newMigrateCmd(c),
	)
	return root
}

func (c *cli) client() (*client.Client, error) {
	newClient := c.newClient
	if newClient == nil {
		newClient = client.New
	}
	cl, err := newClient(client.Options{
		BaseURL:    c.server,
		RetryLimit: c.retryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return cl, nil
}

// requestContext bounds one-shot calls; follow mode uses the command context directly.
func (c *cli) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
