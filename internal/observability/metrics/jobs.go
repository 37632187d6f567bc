// Package metrics defines the job metrics emitted by the control plane.
package metrics

import (
	"maps"
	"sync"
	"time"

	obserrors "github.com/qlora-pipeline/controlplane/internal/observability/errors"
	"github.com/qlora-pipeline/controlplane/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Lifecycle transitions.
const (
	TransitionStarted   = "started"
	TransitionCompleted = "completed"
	TransitionFailed    = "failed"
)

// Metric names.
const (
	MetricJobTransition   = "job.transition"
	MetricJobDuration     = "job.duration"
	MetricLogLinesDropped = "job.log_lines_dropped"
	MetricJobsInFlight    = "job.in_flight"
	MetricHistoryWrite    = "history.write"
	MetricReaperCleanup   = "reaper.cleanup"
	MetricReaperDuration  = "reaper.cleanup_duration"
	MetricReaperRemoved   = "reaper.jobs_removed"
	MetricReaperSuccess   = "reaper.last_success_epoch"
)

// JobMetric captures one job lifecycle event.
type JobMetric struct {
	JobKind    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle counts the transition and, for terminal transitions, times the run.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_kind":   in.JobKind,
		"transition": in.Transition,
	}
	if in.Result != "" {
		tags["result"] = in.Result
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(MetricJobTransition, 1, tags)
	if in.Duration > 0 {
		sink.Timing(MetricJobDuration, in.Duration, maps.Clone(tags))
	}
}

// EmitLogEviction counts one log line evicted from a job's buffer.
func EmitLogEviction(sink statsd.Sink, jobKind string) {
	if sink == nil {
		return
	}
	sink.Count(MetricLogLinesDropped, 1, map[string]string{"job_kind": jobKind})
}

// EmitInFlight reports the number of jobs currently executing.
func EmitInFlight(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge(MetricJobsInFlight, float64(n), nil)
}

// EmitHistoryWrite counts one archive write with its outcome and attempt count.
func EmitHistoryWrite(sink statsd.Sink, jobKind string, attempts int, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"job_kind": jobKind,
		"result":   ResultSuccess,
	}
	if err != nil {
		tags["result"] = ResultError
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count(MetricHistoryWrite, 1, tags)
	if attempts > 1 {
		sink.Count(MetricHistoryWrite+".retries", int64(attempts-1), map[string]string{"job_kind": jobKind})
	}
}

// CleanupMetric captures one reaper pass.
type CleanupMetric struct {
	Removed  map[string]int64 // keyed by operation
	Elapsed  time.Duration
	Err      error
	Finished time.Time
}

// EmitCleanup reports a reaper pass.
func EmitCleanup(sink statsd.Sink, in CleanupMetric) {
	if sink == nil {
		return
	}

	var total int64
	for _, n := range in.Removed {
		total += n
	}

	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case total == 0:
		result = ResultNoop
	}
	tags := map[string]string{"result": result}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(MetricReaperCleanup, 1, tags)
	if in.Elapsed > 0 {
		sink.Timing(MetricReaperDuration, in.Elapsed, maps.Clone(tags))
	}
	for op, n := range in.Removed {
		if n > 0 {
			sink.Count(MetricReaperRemoved, n, map[string]string{"operation": op})
		}
	}
	if in.Err == nil && !in.Finished.IsZero() {
		sink.Gauge(MetricReaperSuccess, float64(in.Finished.Unix()), nil)
	}
}

// Sample is one metric captured by Recorder.
type Sample struct {
	Kind  string
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder is an in-memory statsd.Sink.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
}

var _ statsd.Sink = (*Recorder)(nil)

func (r *Recorder) add(s Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

// Count implements statsd.Sink.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Sample{Kind: "count", Name: name, Value: float64(value), Tags: maps.Clone(tags)})
}

// Gauge implements statsd.Sink.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Sample{Kind: "gauge", Name: name, Value: value, Tags: maps.Clone(tags)})
}

// Timing implements statsd.Sink.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Sample{Kind: "timing", Name: name, Value: float64(value.Milliseconds()), Tags: maps.Clone(tags)})
}

// Samples returns a copy of everything recorded so far.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Named returns recorded samples with the given metric name.
func (r *Recorder) Named(name string) []Sample {
	var out []Sample
	for _, s := range r.Samples() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}
