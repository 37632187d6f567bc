package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/qlora-pipeline/controlplane/internal/core"
	domainjob "github.com/qlora-pipeline/controlplane/internal/domain/job"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
	"github.com/qlora-pipeline/controlplane/internal/observability/metrics"
	"github.com/qlora-pipeline/controlplane/internal/observability/statsd"
)

// HistoryServiceOptions groups dependencies for HistoryService.
type HistoryServiceOptions struct {
	Repo         core.JobHistoryRepository // Required: archive backend
	Registry     *domainjob.Registry       // Optional: source of archived log tails
	LogTailLines int                       // Optional: trailing log lines kept per job (0 keeps none)
	RetryLimit   uint64                    // Optional: retries after the first failed write
	RetryBase    time.Duration             // Optional: first backoff step (default 500ms)
	WriteTimeout time.Duration             // Optional: bound on one record including retries (default 10s)
	Logger       *slog.Logger              // Optional: structured logger
	Metrics      statsd.Sink               // Optional: metrics sink
}

// HistoryService archives finished jobs. The archive is write-only from the
// registry's point of view: nothing read from it is ever loaded back as a live job.
type HistoryService struct {
	repo         core.JobHistoryRepository
	registry     *domainjob.Registry
	logTail      int
	retryLimit   uint64
	retryBase    time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      statsd.Sink
}

var _ core.JobHistoryRecorder = (*HistoryService)(nil)

// NewHistoryService constructs a new HistoryService.
func NewHistoryService(opts HistoryServiceOptions) (*HistoryService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobHistoryRepository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := opts.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tail := opts.LogTailLines
	if tail < 0 {
		tail = 0
	}

	return &HistoryService{
		repo:         opts.Repo,
		registry:     opts.Registry,
		logTail:      tail,
		retryLimit:   opts.RetryLimit,
		retryBase:    base,
		writeTimeout: timeout,
		logger:       logger.With("component", "history_service"),
		metrics:      opts.Metrics,
	}, nil
}

// RecordTerminal archives j. Failures are logged and counted, never returned:
// the job's outcome is already final in the registry.
func (s *HistoryService) RecordTerminal(ctx context.Context, j model.Job) {
	tail, total := s.logTailFor(j.ID)
	entry, err := model.NewHistoryEntry(j, tail, total)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping job history record", "job_id", j.ID, "error", err)
		return
	}

	// The runner's context may already be cancelled during shutdown; the record should still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	attempts := 0
	backoff := retry.WithMaxRetries(s.retryLimit, retry.NewFibonacci(s.retryBase))
	err = retry.Do(writeCtx, backoff, func(ctx context.Context) error {
		attempts++
		if err := s.repo.Record(ctx, entry); err != nil {
			if retryableHistoryError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})

	metrics.EmitHistoryWrite(s.metrics, string(j.Kind), attempts, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to archive job",
			"job_id", j.ID,
			"kind", j.Kind,
			"attempts", attempts,
			"error", err,
		)
		return
	}
	s.logger.DebugContext(ctx, "job archived", "job_id", j.ID, "status", entry.Status, "attempts", attempts)
}

// List returns archived jobs, newest first.
func (s *HistoryService) List(ctx context.Context, opts model.HistoryListOptions) ([]*model.HistoryEntry, error) {
	if err := opts.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if opts.Limit == 0 {
		opts.Limit = 50
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}

	entries, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *HistoryService) logTailFor(jobID string) ([]string, int) {
	if s.registry == nil {
		return nil, 0
	}
	page, err := s.registry.Logs(jobID, 0)
	if err != nil {
		return nil, 0
	}
	lines := page.Logs
	if len(lines) > s.logTail {
		lines = lines[len(lines)-s.logTail:]
	}
	return append([]string(nil), lines...), page.Total
}

func retryableHistoryError(err error) bool {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeConflict, apperrors.ErrCodeNotFound, apperrors.ErrCodeCanceled:
		return false
	}
	return !errors.Is(err, context.Canceled)
}
