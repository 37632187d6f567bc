// Package jobrunner executes job targets, one goroutine per job, and drives each
// job's record through its lifecycle.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/domain/job"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	obserrors "github.com/qlora-pipeline/controlplane/internal/observability/errors"
	"github.com/qlora-pipeline/controlplane/internal/observability/metrics"
	"github.com/qlora-pipeline/controlplane/internal/observability/notify"
	"github.com/qlora-pipeline/controlplane/internal/observability/statsd"
)

// FailureNotifier receives failed jobs.
type FailureNotifier interface {
	NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload)
}

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Registry *job.Registry
	Logger   *slog.Logger

	// Optional dependency injections.
	Metrics         statsd.Sink
	FailureNotifier FailureNotifier
	History         core.JobHistoryRecorder
	Clock           func() time.Time
}

// Runner launches targets and records their outcome in the registry.
//
// Jobs are not queued and not bounded: every Start gets its own goroutine. Targets
// run under a context owned by the runner, which is cancelled only by Shutdown.
type Runner struct {
	registry *job.Registry
	logger   *slog.Logger
	metrics  statsd.Sink
	notifier FailureNotifier
	history  core.JobHistoryRecorder
	now      func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	inFlight int
	wg       sync.WaitGroup
}

var _ core.JobExecutor = (*Runner)(nil)

// PanicError is the failure recorded for a target that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// ErrorClass implements obserrors.Classifier.
func (e *PanicError) ErrorClass() string { return obserrors.ClassPanic }

// NewRunner constructs a runner bound to a registry.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		registry: opts.Registry,
		logger:   logger.With("component", "job_runner"),
		metrics:  opts.Metrics,
		notifier: opts.FailureNotifier,
		history:  opts.History,
		now:      now,
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Start runs target for jobID on a new goroutine and returns immediately.
func (r *Runner) Start(jobID string, target core.Target) {
	r.wg.Add(1)
	r.trackInFlight(1)
	go func() {
		defer r.wg.Done()
		defer r.trackInFlight(-1)
		r.run(r.baseCtx, jobID, target)
	}()
}

// InFlight returns the number of jobs currently executing.
func (r *Runner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Wait blocks until every started job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown waits for in-flight jobs until ctx is done, then cancels their context
// and waits for them to record their outcome.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
	}

	r.logger.WarnContext(ctx, "cancelling in-flight jobs", "in_flight", r.InFlight())
	r.cancel()
	<-done
	return ctx.Err()
}

func (r *Runner) trackInFlight(delta int) {
	r.mu.Lock()
	r.inFlight += delta
	n := r.inFlight
	r.mu.Unlock()
	metrics.EmitInFlight(r.metrics, n)
}

func (r *Runner) run(ctx context.Context, jobID string, target core.Target) {
	rec, err := r.registry.Get(jobID)
	if err != nil {
		r.logger.WarnContext(ctx, "starting job without a record", "job_id", jobID)
	}
	kind := string(rec.Kind)

	started := r.now()
	if err := r.registry.SetState(jobID, model.Running{StartedAt: started}); err != nil {
		r.logger.ErrorContext(ctx, "refusing to run job", "job_id", jobID, "error", err)
		return
	}
	r.registry.AppendLog(jobID, model.LogLineJobStarted)
	r.logger.InfoContext(ctx, "job started", "job_id", jobID, "kind", kind)
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{JobKind: kind, Transition: metrics.TransitionStarted})

	out := job.NewLineWriter(func(line string) { r.registry.AppendLog(jobID, line) })
	result, runErr := invoke(ctx, target, out)
	out.Flush()
	finished := r.now()

	if runErr != nil {
		r.recordFailure(ctx, jobID, kind, runErr, started, finished)
	} else {
		r.recordSuccess(ctx, jobID, kind, result, started, finished)
	}

	if r.history != nil {
		if final, err := r.registry.Get(jobID); err == nil {
			r.history.RecordTerminal(ctx, final)
		}
	}
}

func (r *Runner) recordSuccess(ctx context.Context, jobID, kind string, result any, started, finished time.Time) {
	if err := r.registry.SetState(jobID, model.Completed{Result: result, StartedAt: started, FinishedAt: finished}); err != nil {
		r.logger.ErrorContext(ctx, "complete job error", "job_id", jobID, "error", err)
	}
	r.registry.AppendLog(jobID, model.LogLineJobCompleted)

	r.logger.InfoContext(ctx, "job completed", "job_id", jobID, "kind", kind, "duration", finished.Sub(started))
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		JobKind:    kind,
		Transition: metrics.TransitionCompleted,
		Result:     metrics.ResultSuccess,
		Duration:   finished.Sub(started),
	})
}

func (r *Runner) recordFailure(ctx context.Context, jobID, kind string, runErr error, started, finished time.Time) {
	msg := runErr.Error()
	r.registry.AppendLog(jobID, model.LogLineJobFailed+msg)
	if err := r.registry.SetState(jobID, model.Failed{Error: msg, StartedAt: started, FinishedAt: finished}); err != nil {
		r.logger.ErrorContext(ctx, "fail job error", "job_id", jobID, "error", err, "original_error", runErr)
	}

	attrs := []any{"job_id", jobID, "kind", kind, "error", runErr}
	var pe *PanicError
	if errors.As(runErr, &pe) {
		attrs = append(attrs, "stack", string(pe.Stack))
	}
	r.logger.WarnContext(ctx, "job failed", attrs...)

	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		JobKind:    kind,
		Transition: metrics.TransitionFailed,
		Result:     metrics.ResultError,
		Duration:   finished.Sub(started),
		Err:        runErr,
	})

	if r.notifier == nil {
		return
	}
	rec, _ := r.registry.Get(jobID)
	r.notifier.NotifyJobFailure(context.WithoutCancel(ctx), notify.JobFailurePayload{
		JobID:      jobID,
		JobKind:    kind,
		Summary:    rec.Summary,
		Error:      msg,
		ErrorClass: obserrors.Classify(runErr),
		OccurredAt: finished,
		Duration:   finished.Sub(started),
		Metadata:   stringMetadata(rec.Metadata),
	})
}

// invoke calls target, converting a panic into a *PanicError.
func invoke(ctx context.Context, target core.Target, out *job.LineWriter) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return target(ctx, out)
}

func stringMetadata(md map[string]any) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
