package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobKind_Valid(t *testing.T) {
	assert.True(t, JobKindTrain.Valid())
	assert.True(t, JobKindEvaluate.Valid())
	assert.True(t, JobKindMerge.Valid())
	assert.True(t, JobKindPublish.Valid())
	assert.False(t, JobKind("generate").Valid())
}

func TestJobStatus_UnmarshalText(t *testing.T) {
	var s JobStatus
	require.NoError(t, s.UnmarshalText([]byte(" Running ")))
	assert.Equal(t, JobStatusRunning, s)

	err := s.UnmarshalText([]byte("queued"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queued")
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestJob_MarshalJSON_FlattensState(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	started := created.Add(time.Second)
	finished := created.Add(time.Minute)

	tests := []struct {
		name       string
		state      Outcome
		wantStatus string
		wantResult any
		wantError  any
	}{
		{name: "pending", state: Pending{}, wantStatus: "pending"},
		{name: "nil state reads as pending", state: nil, wantStatus: "pending"},
		{name: "running", state: Running{StartedAt: started}, wantStatus: "running"},
		{
			name:       "completed",
			state:      Completed{Result: map[string]any{"ok": true}, StartedAt: started, FinishedAt: finished},
			wantStatus: "completed",
			wantResult: map[string]any{"ok": true},
		},
		{
			name:       "failed",
			state:      Failed{Error: "bad input", StartedAt: started, FinishedAt: finished},
			wantStatus: "failed",
			wantError:  "bad input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := Job{ID: "j1", Kind: JobKindTrain, Summary: "s", State: tt.state, CreatedAt: created}
			raw, err := json.Marshal(j)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, "j1", got["id"])
			assert.Equal(t, tt.wantStatus, got["status"])
			assert.Equal(t, tt.wantResult, got["result"])
			assert.Equal(t, tt.wantError, got["error"])
			assert.Equal(t, map[string]any{}, got["metadata"])
			assert.Contains(t, got, "created_at")
		})
	}
}

func TestJob_UnmarshalJSON_RebuildsState(t *testing.T) {
	raw := `{"id":"j2","status":"failed","kind":"merge","metadata":{"device":"auto"},
		"result":null,"error":"boom","created_at":"2025-03-01T12:00:00Z",
		"started_at":"2025-03-01T12:00:01Z","finished_at":"2025-03-01T12:01:00Z"}`

	var j Job
	require.NoError(t, json.Unmarshal([]byte(raw), &j))
	assert.Equal(t, JobKindMerge, j.Kind)
	assert.Equal(t, JobStatusFailed, j.Status())

	failed, ok := j.State.(Failed)
	require.True(t, ok)
	assert.Equal(t, "boom", failed.Error)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC), failed.FinishedAt)

	require.Error(t, json.Unmarshal([]byte(`{"id":"x","status":"exploded"}`), &j))
}

func TestJob_CloneCopiesMetadata(t *testing.T) {
	orig := Job{ID: "j", Metadata: map[string]any{"a": 1}}
	c := orig.Clone()
	c.Metadata["a"] = 2
	assert.Equal(t, 1, orig.Metadata["a"])
}

func TestFinishedAt(t *testing.T) {
	now := time.Now()
	_, ok := FinishedAt(Running{StartedAt: now})
	assert.False(t, ok)

	got, ok := FinishedAt(Completed{FinishedAt: now})
	assert.True(t, ok)
	assert.Equal(t, now, got)
}
