// Package job implements the in-memory job registry, per-job log buffers and the
// line-oriented output interceptor used by running jobs.
package job

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

var (
	// ErrJobNotFound is returned when no record exists for a job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrTerminalState is returned when a completed or failed job is asked to change state.
	ErrTerminalState = errors.New("job already in terminal state")
	// ErrInvalidTransition is returned when a state change would move a job backwards
	// or skip running.
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// MaxLogLines bounds each job's log buffer. Defaults to DefaultMaxLogLines.
	MaxLogLines int
	// Notifier is signalled on state changes and log appends. Optional.
	Notifier *Notifier
	// OnLogEvict is called whenever a log line is evicted. Optional.
	OnLogEvict func(jobID string)
	// Clock defaults to time.Now.
	Clock func() time.Time
	// NewID defaults to random UUIDs.
	NewID func() string
}

// Registry is the authoritative store of job records and their log buffers.
//
// The map lock is held only while a record is read or replaced, never while a job
// executes. Records are stored by value, so readers always see a whole record.
type Registry struct {
	mu       sync.RWMutex
	jobs     map[string]model.Job
	logs     *LogStore
	notifier *Notifier
	now      func() time.Time
	newID    func() string
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Registry{
		jobs: make(map[string]model.Job),
		logs: NewLogStore(LogStoreOptions{
			MaxLines: opts.MaxLogLines,
			Notifier: opts.Notifier,
			OnEvict:  opts.OnLogEvict,
		}),
		notifier: opts.Notifier,
		now:      now,
		newID:    newID,
	}
}

// Create inserts a pending job with an empty log buffer and returns its id.
func (r *Registry) Create(kind model.JobKind, summary string, metadata map[string]any) string {
	id := r.newID()
	if metadata == nil {
		metadata = map[string]any{}
	}
	rec := model.Job{
		ID:        id,
		Kind:      kind,
		Summary:   summary,
		Metadata:  maps.Clone(metadata),
		State:     model.Pending{},
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.jobs[id] = rec
	r.logs.Create(id)
	r.mu.Unlock()
	return id
}

// UpdateOption changes descriptive fields alongside a state change.
type UpdateOption func(*model.Job)

// WithSummary replaces the job summary.
func WithSummary(summary string) UpdateOption {
	return func(j *model.Job) { j.Summary = summary }
}

// WithMetadata replaces the job metadata.
func WithMetadata(metadata map[string]any) UpdateOption {
	return func(j *model.Job) { j.Metadata = maps.Clone(metadata) }
}

// SetState moves jobID to state. Known jobs only move forward:
// pending to running, then running to completed or failed. A job that already
// reached a terminal state is left unchanged and ErrTerminalState is returned; any
// other out-of-order change returns ErrInvalidTransition. An unknown id gets a
// minimal record in whatever state it is given.
func (r *Registry) SetState(jobID string, state model.Outcome, opts ...UpdateOption) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidTransition)
	}

	r.mu.Lock()
	rec, ok := r.jobs[jobID]
	if !ok {
		rec = model.Job{ID: jobID, Metadata: map[string]any{}, CreatedAt: r.now()}
	} else if err := checkTransition(rec.Status(), state.Status()); err != nil {
		r.mu.Unlock()
		return err
	}

	rec.State = state
	for _, opt := range opts {
		opt(&rec)
	}
	r.jobs[jobID] = rec
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.Notify(jobID)
	}
	return nil
}

func checkTransition(from, to model.JobStatus) error {
	switch {
	case from.Terminal():
		return ErrTerminalState
	case from == model.JobStatusPending && to == model.JobStatusRunning:
		return nil
	case from == model.JobStatusRunning && to.Terminal():
		return nil
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}

// Get returns a copy of jobID's record.
func (r *Registry) Get(jobID string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return rec.Clone(), nil
}

// List returns a snapshot of all records ordered by creation time.
func (r *Registry) List() []model.Job {
	r.mu.RLock()
	out := make([]model.Job, 0, len(r.jobs))
	for _, rec := range r.jobs {
		out = append(out, rec.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Stats counts jobs per status.
func (r *Registry) Stats() model.JobStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s model.JobStats
	for _, rec := range r.jobs {
		switch rec.Status() {
		case model.JobStatusPending:
			s.Pending++
		case model.JobStatusRunning:
			s.Running++
		case model.JobStatusCompleted:
			s.Completed++
		case model.JobStatusFailed:
			s.Failed++
		}
	}
	return s
}

// AppendLog adds one line to jobID's log buffer.
func (r *Registry) AppendLog(jobID, line string) {
	r.logs.Append(jobID, line)
}

// Logs returns jobID's log lines from offset since. The job must exist in the registry.
func (r *Registry) Logs(jobID string, since int) (model.LogPage, error) {
	r.mu.RLock()
	_, ok := r.jobs[jobID]
	r.mu.RUnlock()
	if !ok {
		return model.LogPage{}, ErrJobNotFound
	}
	return r.logs.Read(jobID, since), nil
}

// Prune removes terminal jobs for which match returns true, along with their logs.
// Pending and running jobs are never removed. It returns the removed ids.
func (r *Registry) Prune(match func(model.Job) bool) []string {
	r.mu.Lock()
	var removed []string
	for id, rec := range r.jobs {
		if !rec.Status().Terminal() || !match(rec) {
			continue
		}
		delete(r.jobs, id)
		r.logs.Delete(id)
		removed = append(removed, id)
	}
	r.mu.Unlock()

	slices.Sort(removed)
	return removed
}
