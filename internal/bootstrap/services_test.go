package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlora-pipeline/controlplane/config"
	"github.com/qlora-pipeline/controlplane/internal/data"
	httpx "github.com/qlora-pipeline/controlplane/internal/http"
)

func testAppConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{Services: "http"}
	cfg.Sanitize()
	return cfg
}

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{name: "no services enabled", want: 0},
		{name: "http only", modes: []config.ServiceMode{config.ServiceModeHTTP}, want: 1},
		{name: "reaper only", modes: []config.ServiceMode{config.ServiceModeReaper}, want: 1},
		{
			name:  "all services enabled",
			modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeReaper},
			want:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}
			assert.Equal(t, tt.want, errorChannelCapacity(enabled))
			assert.Equal(t, tt.want+1, errorChannelBufferSize(enabled))
		})
	}
}

func TestNewServices_WithoutHistory(t *testing.T) {
	svcs, err := NewServices(&ServiceDeps{Config: testAppConfig(t), Logger: slog.Default()})
	require.NoError(t, err)

	assert.NotNil(t, svcs.Jobs)
	assert.NotNil(t, svcs.Registry)
	assert.NotNil(t, svcs.Notifier)
	assert.NotNil(t, svcs.Runner)
	assert.NotNil(t, svcs.Artifacts)
	assert.Nil(t, svcs.History)
	assert.Nil(t, svcs.HistoryRepo)
	assert.Nil(t, svcs.Observability.MetricsSink)
	assert.False(t, svcs.Observability.FailureNotifier.Enabled())
}

func TestNewServices_RequiresConfig(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)
}

func TestBuildHistoryRepo(t *testing.T) {
	t.Run("postgres without a database", func(t *testing.T) {
		cfg := testAppConfig(t)
		cfg.History.Backend = config.HistoryBackendPostgres
		_, err := NewServices(&ServiceDeps{Config: cfg})
		require.ErrorContains(t, err, "requires a database connection")
	})

	t.Run("redis without a client", func(t *testing.T) {
		cfg := testAppConfig(t)
		cfg.History.Backend = config.HistoryBackendRedis
		_, err := buildHistoryRepo(cfg, nil, nil)
		require.ErrorContains(t, err, "requires a redis client")
	})

	t.Run("redis backend", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
		t.Cleanup(func() { _ = rdb.Close() })

		cfg := testAppConfig(t)
		cfg.History.Backend = config.HistoryBackendRedis
		svcs, err := NewServices(&ServiceDeps{Config: cfg, RedisClient: rdb})
		require.NoError(t, err)
		assert.IsType(t, &data.RedisHistoryRepo{}, svcs.HistoryRepo)
		assert.NotNil(t, svcs.History)
	})

	t.Run("none", func(t *testing.T) {
		repo, err := buildHistoryRepo(testAppConfig(t), nil, nil)
		require.NoError(t, err)
		assert.Nil(t, repo)
	})
}

func TestBuildFailureNotifier(t *testing.T) {
	cfg := config.ObservabilityNotificationsConfig{
		Enabled: true,
		Slack: config.SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.test/abc",
		},
		PagerDuty: config.PagerDutyNotificationConfig{Enabled: true, RoutingKey: "key"},
	}
	cfg.Sanitize()

	assert.True(t, buildFailureNotifier(slog.Default(), cfg).Enabled())
	assert.False(t, buildFailureNotifier(nil, config.ObservabilityNotificationsConfig{}).Enabled())
}

func TestBuildHTTPHandler_ServesHealth(t *testing.T) {
	svcs, err := NewServices(&ServiceDeps{Config: testAppConfig(t)})
	require.NoError(t, err)

	h := buildHTTPHandler(httpHandlerConfig{
		Logger:   slog.Default(),
		Services: httpx.RouterServices{Jobs: svcs.Jobs, Logger: slog.Default()},
		HTTP:     config.HTTPConfig{CompressionEnabled: true, CompressionLevel: 5},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGracefulStop_ReturnsWhenIdle(t *testing.T) {
	svcs, err := NewServices(&ServiceDeps{Config: testAppConfig(t)})
	require.NoError(t, err)

	done := make(chan struct{})
	close(done)

	start := time.Now()
	err = gracefulStop(shutdownConfig{
		services:    svcs,
		grace:       time.Second,
		logger:      slog.Default(),
		backgrounds: []backgroundServiceHandle{{mode: config.ServiceModeReaper, name: "reaper", done: done}},
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLaunchBackground_ForwardsErrors(t *testing.T) {
	errCh := make(chan error, 1)
	deps := &serviceStartupDeps{
		ctx:             context.Background(),
		logger:          slog.Default(),
		enabledServices: map[config.ServiceMode]bool{config.ServiceModeReaper: true},
		errCh:           errCh,
	}

	done := launchBackground(deps.ctx, deps, backgroundService{
		mode:  config.ServiceModeReaper,
		name:  "reaper",
		start: func(context.Context) error { return assert.AnError },
	})
	require.NotNil(t, done)
	<-done

	err := <-errCh
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "reaper failed")
}

func TestLaunchBackground_SkipsDisabled(t *testing.T) {
	deps := &serviceStartupDeps{ctx: context.Background(), enabledServices: map[config.ServiceMode]bool{}}
	done := launchBackground(deps.ctx, deps, backgroundService{mode: config.ServiceModeReaper, name: "reaper"})
	assert.Nil(t, done)
}
