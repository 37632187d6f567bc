package model

import "time"

// Outcome is the lifecycle state of a job. Exactly one of Pending, Running,
// Completed or Failed; a result and an error can never coexist.
type Outcome interface {
	Status() JobStatus
	outcome()
}

// Pending is the state of a freshly created job.
type Pending struct{}

// Running is the state of a job whose target is executing.
type Running struct {
	StartedAt time.Time
}

// Completed is the terminal state of a job whose target returned normally.
type Completed struct {
	Result     any
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed is the terminal state of a job whose target returned an error or panicked.
type Failed struct {
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (Pending) Status() JobStatus   { return JobStatusPending }
func (Running) Status() JobStatus   { return JobStatusRunning }
func (Completed) Status() JobStatus { return JobStatusCompleted }
func (Failed) Status() JobStatus    { return JobStatusFailed }

func (Pending) outcome()   {}
func (Running) outcome()   {}
func (Completed) outcome() {}
func (Failed) outcome()    {}

// FinishedAt returns the time a terminal outcome was recorded.
func FinishedAt(o Outcome) (time.Time, bool) {
	switch st := o.(type) {
	case Completed:
		return st.FinishedAt, true
	case Failed:
		return st.FinishedAt, true
	default:
		return time.Time{}, false
	}
}
