// Package reaper provides adapters for running the retention loop.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qlora-pipeline/controlplane/config"
	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/observability/statsd"
	"github.com/qlora-pipeline/controlplane/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
// It constructs the reaper service and runs the cleanup loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Jobs   core.JobPruner
	Config config.ReaperConfig
	Logger *slog.Logger

	// History is pruned alongside the registry when an archive backend is configured.
	History core.JobHistoryRepository
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Jobs:    opts.Jobs,
		History: opts.History,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: svc, logger: opts.Logger}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
