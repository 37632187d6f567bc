package model

import (
	"encoding/json"
	"errors"
	"time"
)

// HistoryEntry is the archived form of a finished job.
type HistoryEntry struct {
	JobID      string          `json:"job_id"              db:"job_id"`
	Kind       JobKind         `json:"kind"                db:"kind"`
	Summary    string          `json:"summary"             db:"summary"`
	Status     JobStatus       `json:"status"              db:"status"`
	Metadata   json.RawMessage `json:"metadata"            db:"metadata"`
	Result     json.RawMessage `json:"result,omitempty"    db:"result"`
	Error      *string         `json:"error,omitempty"     db:"error"`
	LogTail    []string        `json:"log_tail"            db:"log_tail"`
	LogTotal   int             `json:"log_total"           db:"log_total"`
	CreatedAt  time.Time       `json:"created_at"          db:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty" db:"started_at"`
	FinishedAt time.Time       `json:"finished_at"         db:"finished_at"`
}

// HistoryListOptions pages through archived jobs, newest first.
type HistoryListOptions struct {
	Kind   JobKind
	Status JobStatus
	Limit  int
	Offset int
}

// Validate validates the HistoryListOptions fields.
func (o *HistoryListOptions) Validate() error {
	if o.Kind != "" && !o.Kind.Valid() {
		return errors.New("invalid job kind")
	}
	if o.Status != "" && !o.Status.Terminal() {
		return errors.New("history only holds completed or failed jobs")
	}
	if o.Limit < 0 || o.Offset < 0 {
		return errors.New("limit and offset must be >= 0")
	}
	return nil
}

// NewHistoryEntry converts a terminal job into its archived form.
func NewHistoryEntry(j Job, tail []string, total int) (*HistoryEntry, error) {
	finished, ok := FinishedAt(j.State)
	if !ok {
		return nil, errors.New("job is not terminal")
	}

	md, err := json.Marshal(j.Metadata)
	if err != nil {
		return nil, err
	}
	entry := &HistoryEntry{
		JobID:      j.ID,
		Kind:       j.Kind,
		Summary:    j.Summary,
		Status:     j.Status(),
		Metadata:   md,
		LogTail:    tail,
		LogTotal:   total,
		CreatedAt:  j.CreatedAt,
		FinishedAt: finished,
	}
	if entry.LogTail == nil {
		entry.LogTail = []string{}
	}

	switch st := j.State.(type) {
	case Completed:
		if entry.Result, err = json.Marshal(st.Result); err != nil {
			return nil, err
		}
		entry.StartedAt = timePtr(st.StartedAt)
	case Failed:
		msg := st.Error
		entry.Error = &msg
		entry.StartedAt = timePtr(st.StartedAt)
	}
	return entry, nil
}
