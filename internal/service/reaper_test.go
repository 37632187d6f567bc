package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/qlora-pipeline/controlplane/config"
	domainjob "github.com/qlora-pipeline/controlplane/internal/domain/job"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	"github.com/qlora-pipeline/controlplane/internal/mocks"
	"github.com/qlora-pipeline/controlplane/internal/observability/metrics"
)

var reaperNow = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:        time.Minute,
		CompletedMaxAge: 24 * time.Hour,
		FailedMaxAge:    48 * time.Hour,
		HistoryMaxAge:   30 * 24 * time.Hour,
	}
}

func finish(t *testing.T, r *domainjob.Registry, failed bool, age time.Duration) string {
	t.Helper()
	id := r.Create(model.JobKindTrain, "train", nil)
	at := reaperNow.Add(-age)
	var state model.Outcome = model.Completed{StartedAt: at, FinishedAt: at}
	if failed {
		state = model.Failed{Error: "boom", StartedAt: at, FinishedAt: at}
	}
	require.NoError(t, r.SetState(id, model.Running{StartedAt: at}))
	require.NoError(t, r.SetState(id, state))
	return id
}

func TestNewReaperService_Validation(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
	require.Error(t, err)

	_, err = NewReaperService(ReaperServiceOptions{Jobs: newTestRegistry(nil)})
	require.Error(t, err)
}

func TestReaperService_RunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockJobHistoryRepository(ctrl)
	registry := newTestRegistry(nil)
	rec := &metrics.Recorder{}

	oldCompleted := finish(t, registry, false, 25*time.Hour)
	recentCompleted := finish(t, registry, false, time.Hour)
	oldFailed := finish(t, registry, true, 49*time.Hour)
	youngFailed := finish(t, registry, true, 30*time.Hour)
	running := registry.Create(model.JobKindTrain, "train", nil)
	require.NoError(t, registry.SetState(running, model.Running{StartedAt: reaperNow.Add(-100 * time.Hour)}))
	pending := registry.Create(model.JobKindMerge, "merge", nil)

	history.EXPECT().DeleteBefore(gomock.Any(), reaperNow.Add(-30*24*time.Hour)).Return(int64(3), nil)

	svc, err := NewReaperService(ReaperServiceOptions{
		Jobs:    registry,
		History: history,
		Config:  testReaperConfig(),
		Metrics: rec,
		Clock:   func() time.Time { return reaperNow },
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(context.Background()))

	for _, id := range []string{oldCompleted, oldFailed} {
		_, err := registry.Get(id)
		require.ErrorIs(t, err, domainjob.ErrJobNotFound, id)
		_, err = registry.Logs(id, 0)
		require.ErrorIs(t, err, domainjob.ErrJobNotFound, id)
	}
	for _, id := range []string{recentCompleted, youngFailed, running, pending} {
		_, err := registry.Get(id)
		require.NoError(t, err, id)
	}

	runs := rec.Named(metrics.MetricReaperCleanup)
	require.Len(t, runs, 1)
	assert.Equal(t, metrics.ResultSuccess, runs[0].Tags["result"])

	removed := map[string]float64{}
	for _, s := range rec.Named(metrics.MetricReaperRemoved) {
		removed[s.Tags["operation"]] = s.Value
	}
	assert.Equal(t, map[string]float64{"completed": 1, "failed": 1, "history": 3}, removed)
}

func TestReaperService_RunOnce_HistoryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockJobHistoryRepository(ctrl)
	rec := &metrics.Recorder{}

	history.EXPECT().DeleteBefore(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("db down"))

	svc, err := NewReaperService(ReaperServiceOptions{
		Jobs:    newTestRegistry(nil),
		History: history,
		Config:  testReaperConfig(),
		Metrics: rec,
		Clock:   func() time.Time { return reaperNow },
	})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune job history")

	runs := rec.Named(metrics.MetricReaperCleanup)
	require.Len(t, runs, 1)
	assert.Equal(t, metrics.ResultError, runs[0].Tags["result"])
	assert.Empty(t, rec.Named(metrics.MetricReaperSuccess))
}

func TestReaperService_RunOnce_WithoutHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobPruner(ctrl)
	jobs.EXPECT().Prune(gomock.Any()).Return(nil).Times(2)

	svc, err := NewReaperService(ReaperServiceOptions{Jobs: jobs, Config: testReaperConfig()})
	require.NoError(t, err)
	require.NoError(t, svc.RunOnce(context.Background()))
}

func TestReaperService_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobPruner(ctrl)
	jobs.EXPECT().Prune(gomock.Any()).Return(nil).AnyTimes()

	svc, err := NewReaperService(ReaperServiceOptions{Jobs: jobs, Config: testReaperConfig()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
