// Package model defines the core data types shared by the job control plane.
package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// JobKind describes what a job does. It is descriptive only and never interpreted by the registry.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobKind string

// JobStatus represents the current lifecycle state of a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobKindTrain represents a QLoRA fine-tuning run.
	JobKindTrain JobKind = "train"
	// JobKindEvaluate represents an evaluation of predictions against references.
	JobKindEvaluate JobKind = "evaluate"
	// JobKindMerge represents merging a LoRA adapter into its base model.
	JobKindMerge JobKind = "merge"
	// JobKindPublish represents publishing a model directory to an artifact store.
	JobKindPublish JobKind = "publish"

	// JobStatusPending indicates a job was created but has not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job's target operation is executing.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job's target returned normally.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job's target returned an error or panicked.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobKind is one of the known kinds.
func (k JobKind) Valid() bool {
	return k == JobKindTrain || k == JobKindEvaluate || k == JobKindMerge || k == JobKindPublish
}

// UnmarshalText implements encoding.TextUnmarshaler for query and flag parsing.
func (k *JobKind) UnmarshalText(text []byte) error {
	v := JobKind(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobKind: %q", v)
	}
	*k = v
	return nil
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// UnmarshalText implements encoding.TextUnmarshaler for query and flag parsing.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", v)
	}
	*s = v
	return nil
}

// Job is a point-in-time copy of one job record.
//
// State carries the lifecycle status together with the only data meaningful to it:
// a result exists only on Completed and an error message only on Failed.
type Job struct {
	ID        string
	Kind      JobKind
	Summary   string
	Metadata  map[string]any
	State     Outcome
	CreatedAt time.Time
}

// Status returns the lifecycle status encoded by the job's state.
func (j *Job) Status() JobStatus {
	if j.State == nil {
		return JobStatusPending
	}
	return j.State.Status()
}

// Clone returns a copy whose metadata map can be read without holding the registry lock.
func (j *Job) Clone() Job {
	out := *j
	if j.Metadata != nil {
		out.Metadata = maps.Clone(j.Metadata)
	}
	return out
}

// jobJSON is the wire form of a job record.
type jobJSON struct {
	ID         string         `json:"id"`
	Status     JobStatus      `json:"status"`
	Kind       JobKind        `json:"kind,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	Result     any            `json:"result"`
	Error      *string        `json:"error"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// MarshalJSON flattens the state union into the status/result/error fields clients poll.
func (j Job) MarshalJSON() ([]byte, error) {
	out := jobJSON{
		ID:        j.ID,
		Status:    j.Status(),
		Kind:      j.Kind,
		Summary:   j.Summary,
		Metadata:  j.Metadata,
		CreatedAt: j.CreatedAt,
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	switch st := j.State.(type) {
	case Running:
		out.StartedAt = timePtr(st.StartedAt)
	case Completed:
		out.Result = st.Result
		out.StartedAt = timePtr(st.StartedAt)
		out.FinishedAt = timePtr(st.FinishedAt)
	case Failed:
		msg := st.Error
		out.Error = &msg
		out.StartedAt = timePtr(st.StartedAt)
		out.FinishedAt = timePtr(st.FinishedAt)
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the state union from the wire form.
func (j *Job) UnmarshalJSON(data []byte) error {
	var in jobJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", in.Status)
	}

	var started, finished time.Time
	if in.StartedAt != nil {
		started = *in.StartedAt
	}
	if in.FinishedAt != nil {
		finished = *in.FinishedAt
	}

	*j = Job{
		ID:        in.ID,
		Kind:      in.Kind,
		Summary:   in.Summary,
		Metadata:  in.Metadata,
		CreatedAt: in.CreatedAt,
	}
	switch in.Status {
	case JobStatusRunning:
		j.State = Running{StartedAt: started}
	case JobStatusCompleted:
		j.State = Completed{Result: in.Result, StartedAt: started, FinishedAt: finished}
	case JobStatusFailed:
		msg := ""
		if in.Error != nil {
			msg = *in.Error
		}
		j.State = Failed{Error: msg, StartedAt: started, FinishedAt: finished}
	default:
		j.State = Pending{}
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// JobStats counts jobs per status.
type JobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// SubmitResponse is returned when a job has been created and handed to the runner.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// SubmitStatusQueued is the status reported by SubmitResponse.
const SubmitStatusQueued = "queued"
