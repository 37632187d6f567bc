package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qlora-pipeline/controlplane/config"
	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	"github.com/qlora-pipeline/controlplane/internal/observability/metrics"
	"github.com/qlora-pipeline/controlplane/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Jobs    core.JobPruner            // Required: live registry
	History core.JobHistoryRepository // Optional: archive to prune
	Config  config.ReaperConfig       // Required: reaper configuration
	Logger  *slog.Logger              // Optional: structured logger
	Metrics statsd.Sink               // Optional: metrics sink (StatsD-compatible)
	Clock   func() time.Time          // Optional: defaults to time.Now
}

// ReaperService enforces retention.
//
// This service manages:
// - Removing completed jobs (and their logs) from the registry once they age out.
// - Removing failed jobs the same way, with their own max age.
// - Deleting archived history older than the history max age.
//
// Pending and running jobs are never removed.
type ReaperService struct {
	jobs    core.JobPruner
	history core.JobHistoryRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobPruner is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"completed_max_age", opts.Config.CompletedMaxAge,
		"failed_max_age", opts.Config.FailedMaxAge,
		"history_max_age", opts.Config.HistoryMaxAge,
		"history_enabled", opts.History != nil,
	)

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &ReaperService{
		jobs:    opts.Jobs,
		history: opts.History,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// It performs cleanup operations at the configured interval.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// RunOnce performs a single cleanup pass.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := s.now()
	removed := map[string]int64{
		"completed": s.pruneRegistry(ctx, model.JobStatusCompleted, s.config.CompletedMaxAge, start),
		"failed":    s.pruneRegistry(ctx, model.JobStatusFailed, s.config.FailedMaxAge, start),
	}

	var err error
	if s.history != nil {
		var n int64
		n, err = s.pruneHistory(ctx, start)
		removed["history"] = n
		if err != nil {
			err = fmt.Errorf("prune job history: %w", err)
		}
	}

	finished := s.now()
	metrics.EmitCleanup(s.metrics, metrics.CleanupMetric{
		Removed:  removed,
		Elapsed:  finished.Sub(start),
		Err:      suppressContextCancellation(err),
		Finished: finished,
	})

	if err != nil && isContextCancellation(err) {
		return context.Canceled
	}
	return err
}

func (s *ReaperService) pruneRegistry(
	ctx context.Context,
	status model.JobStatus,
	maxAge time.Duration,
	now time.Time,
) int64 {
	cutoff := now.Add(-maxAge)
	ids := s.jobs.Prune(func(j model.Job) bool {
		if j.Status() != status {
			return false
		}
		finished, ok := model.FinishedAt(j.State)
		return ok && finished.Before(cutoff)
	})

	if len(ids) > 0 {
		s.logger.InfoContext(ctx, "removed expired jobs",
			"status", status,
			"count", len(ids),
			"max_age", maxAge,
		)
	}
	return int64(len(ids))
}

func (s *ReaperService) pruneHistory(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.history.DeleteBefore(ctx, now.Add(-s.config.HistoryMaxAge))
	if err != nil {
		return count, err
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "deleted archived jobs",
			"count", count,
			"max_age", s.config.HistoryMaxAge,
		)
	}
	return count, nil
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error, label string) {
	if err == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
