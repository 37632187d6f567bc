// Package core defines the ports shared by the job services and their adapters.
package core

import (
	"context"
	"io"
	"time"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

// This file contains the ports between the service layer and its adapters.
// Services depend on these interfaces, not on concrete implementations.

// Target is the long-running operation a job wraps. Everything it writes to out
// becomes the job's log; its return value becomes the job's result or error.
type Target func(ctx context.Context, out io.Writer) (any, error)

// JobExecutor launches a job's target off the request path.
type JobExecutor interface {
	Start(jobID string, target Target)
}

// TaskTargets builds the targets for each job kind.
type TaskTargets interface {
	Train(params map[string]any) Target
	Evaluate(req model.EvaluateRequest) Target
	Merge(req model.MergeRequest) Target
	Publish(req model.PublishRequest) Target
}

// JobHistoryRepository archives terminal job records. Entries are never read back
// into the live registry.
type JobHistoryRepository interface {
	Record(ctx context.Context, entry *model.HistoryEntry) error
	List(ctx context.Context, opts model.HistoryListOptions) ([]*model.HistoryEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobHistoryRecorder receives every job once it reaches a terminal state.
type JobHistoryRecorder interface {
	RecordTerminal(ctx context.Context, job model.Job)
}

// JobPruner removes finished jobs, and their logs, from the live registry.
type JobPruner interface {
	Prune(match func(model.Job) bool) []string
}

// AdapterCatalog reads and edits the registry of trained adapters.
type AdapterCatalog interface {
	List(ctx context.Context) ([]model.AdapterEntry, error)
	Remove(ctx context.Context, path string) (model.AdapterEntry, error)
}
