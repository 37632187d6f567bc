package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitJobLifecycle(t *testing.T) {
	rec := &Recorder{}
	EmitJobLifecycle(rec, JobMetric{
		JobKind:    "train",
		Transition: TransitionFailed,
		Result:     ResultError,
		Duration:   2 * time.Second,
		Err:        context.DeadlineExceeded,
	})

	counts := rec.Named(MetricJobTransition)
	require.Len(t, counts, 1)
	assert.Equal(t, "train", counts[0].Tags["job_kind"])
	assert.Equal(t, "failed", counts[0].Tags["transition"])
	assert.Equal(t, "timeout", counts[0].Tags["error_class"])

	timings := rec.Named(MetricJobDuration)
	require.Len(t, timings, 1)
	assert.InDelta(t, 2000, timings[0].Value, 0.1)
}

func TestEmitJobLifecycle_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitJobLifecycle(nil, JobMetric{JobKind: "train"})
		EmitInFlight(nil, 1)
		EmitLogEviction(nil, "train")
		EmitHistoryWrite(nil, "train", 1, nil)
		EmitCleanup(nil, CleanupMetric{})
	})
}

func TestEmitHistoryWrite(t *testing.T) {
	rec := &Recorder{}
	EmitHistoryWrite(rec, "merge", 3, errors.New("boom"))

	writes := rec.Named(MetricHistoryWrite)
	require.Len(t, writes, 1)
	assert.Equal(t, ResultError, writes[0].Tags["result"])

	retries := rec.Named(MetricHistoryWrite + ".retries")
	require.Len(t, retries, 1)
	assert.InDelta(t, 2, retries[0].Value, 0)
}

func TestEmitCleanup(t *testing.T) {
	t.Run("noop", func(t *testing.T) {
		rec := &Recorder{}
		EmitCleanup(rec, CleanupMetric{Removed: map[string]int64{"completed": 0}, Finished: time.Unix(100, 0)})

		runs := rec.Named(MetricReaperCleanup)
		require.Len(t, runs, 1)
		assert.Equal(t, ResultNoop, runs[0].Tags["result"])
		assert.Empty(t, rec.Named(MetricReaperRemoved))
		assert.Len(t, rec.Named(MetricReaperSuccess), 1)
	})

	t.Run("removed", func(t *testing.T) {
		rec := &Recorder{}
		EmitCleanup(rec, CleanupMetric{
			Removed: map[string]int64{"completed": 2, "failed": 1},
			Elapsed: time.Millisecond,
		})

		runs := rec.Named(MetricReaperCleanup)
		require.Len(t, runs, 1)
		assert.Equal(t, ResultSuccess, runs[0].Tags["result"])
		assert.Len(t, rec.Named(MetricReaperRemoved), 2)
		assert.Len(t, rec.Named(MetricReaperDuration), 1)
	})

	t.Run("error", func(t *testing.T) {
		rec := &Recorder{}
		EmitCleanup(rec, CleanupMetric{Err: errors.New("db down"), Finished: time.Unix(100, 0)})

		runs := rec.Named(MetricReaperCleanup)
		require.Len(t, runs, 1)
		assert.Equal(t, ResultError, runs[0].Tags["result"])
		assert.Empty(t, rec.Named(MetricReaperSuccess))
	})
}
