package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qlora-pipeline/controlplane/config"
	"github.com/qlora-pipeline/controlplane/internal/adapters/reaper"
	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/observability/statsd"
)

// ReaperConfig contains configuration for the retention loop.
type ReaperConfig struct {
	Jobs    core.JobPruner
	History core.JobHistoryRepository
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Jobs:    cfg.Jobs,
		History: cfg.History,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}
	return runner.Run(ctx)
}
