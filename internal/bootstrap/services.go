package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/qlora-pipeline/controlplane/config"
	"github.com/qlora-pipeline/controlplane/internal/adapters/jobrunner"
	"github.com/qlora-pipeline/controlplane/internal/adapters/mltasks"
	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/data"
	domainjob "github.com/qlora-pipeline/controlplane/internal/domain/job"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	"github.com/qlora-pipeline/controlplane/internal/observability/metrics"
	"github.com/qlora-pipeline/controlplane/internal/observability/notify/pagerduty"
	"github.com/qlora-pipeline/controlplane/internal/observability/notify/slack"
	"github.com/qlora-pipeline/controlplane/internal/observability/statsd"
	"github.com/qlora-pipeline/controlplane/internal/service"
	"github.com/qlora-pipeline/controlplane/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs      *service.JobService
	History   *service.HistoryService // nil when no archive backend is configured
	Artifacts *service.ArtifactService
	Registry  *domainjob.Registry
	Notifier  *domainjob.Notifier
	Runner    *jobrunner.Runner

	HistoryRepo   core.JobHistoryRepository
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// sink returns the metrics sink as the interface, keeping a nil client a nil interface.
//
//nolint:ireturn // statsd.Sink is the injection point for every emitter.
func (o ObservabilityContainer) sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:  baseLogger.With("component", "failure_notifier"),
		Sinks:   sinks,
		Kinds:   cfg.JobKinds,
		Timeout: cfg.Timeout,
	})
}

// buildHistoryRepo picks the archive backend; nil means archiving is off.
//
//nolint:ireturn // callers only need the port.
func buildHistoryRepo(cfg *config.AppConfig, db *sql.DB, rdb redis.UniversalClient) (core.JobHistoryRepository, error) {
	switch cfg.History.Backend {
	case config.HistoryBackendPostgres:
		if db == nil {
			return nil, errors.New("postgres history backend requires a database connection")
		}
		return data.NewHistoryRepo(db), nil
	case config.HistoryBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis history backend requires a redis client")
		}
		return data.NewRedisHistoryRepo(rdb, data.RedisHistoryRepoConfig{
			KeyPrefix: cfg.History.RedisKeyPrefix,
			TTL:       cfg.History.RedisTTL,
		}), nil
	default:
		return nil, nil
	}
}

func buildS3Publisher(cfg config.PublishConfig, logger *slog.Logger) (*mltasks.S3Publisher, error) {
	if !cfg.S3Enabled() {
		return nil, nil
	}
	return mltasks.NewS3Publisher(mltasks.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		UsePathStyle:    cfg.S3UsePathStyle,
		PartSize:        cfg.PartSizeMB << 20,
		Concurrency:     cfg.Concurrency,
		RetryLimit:      cfg.RetryLimit,
		RetryBase:       cfg.RetryBase,
	}, nil, logger)
}

func buildArtifactService(cfg config.TasksConfig, logger *slog.Logger) (*service.ArtifactService, error) {
	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	svc, err := service.NewArtifactService(service.ArtifactServiceOptions{
		ProjectRoot:     root,
		Adapters:        data.NewAdapterRegistryFile(model.ResolvePath(root, cfg.AdapterRegistry)),
		EvalResultsFile: cfg.EvalResultsFile,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact service: %w", err)
	}
	return svc, nil
}

// NewServices wires the registry, runner, task targets and facades.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, cfg.Observability)
	sink := obs.sink()

	notifier := domainjob.NewNotifier()
	var registry *domainjob.Registry
	registry = domainjob.NewRegistry(domainjob.RegistryOptions{
		MaxLogLines: cfg.Jobs.MaxLogLines,
		Notifier:    notifier,
		OnLogEvict: func(jobID string) {
			kind := "unknown"
			if j, err := registry.Get(jobID); err == nil {
				kind = string(j.Kind)
			}
			metrics.EmitLogEviction(sink, kind)
		},
	})

	historyRepo, err := buildHistoryRepo(cfg, deps.DB, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}

	var history *service.HistoryService
	var recorder core.JobHistoryRecorder
	if historyRepo != nil {
		history, err = service.NewHistoryService(service.HistoryServiceOptions{
			Repo:         historyRepo,
			Registry:     registry,
			LogTailLines: cfg.History.LogTailLines,
			RetryLimit:   cfg.History.RetryLimit,
			RetryBase:    cfg.History.RetryBase,
			WriteTimeout: cfg.History.WriteTimeout,
			Logger:       logger,
			Metrics:      sink,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("create history service: %w", err)
		}
		recorder = history
	}

	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Registry:        registry,
		Logger:          logger,
		Metrics:         sink,
		FailureNotifier: obs.FailureNotifier,
		History:         recorder,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create job runner: %w", err)
	}

	s3pub, err := buildS3Publisher(cfg.Publish, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create s3 publisher: %w", err)
	}

	tasks := mltasks.New(mltasks.Options{
		PythonBin:   cfg.Tasks.PythonBin,
		ProjectRoot: cfg.Tasks.ProjectRoot,
		TrainScript: cfg.Tasks.TrainScript,
		EvalScript:  cfg.Tasks.EvalScript,
		MergeScript: cfg.Tasks.MergeScript,
		HubCLI:      cfg.Tasks.HubCLI,
		HFTokenEnv:  cfg.Tasks.HFTokenEnv,
		KillDelay:   cfg.Tasks.KillDelay,
		TempDir:     cfg.Tasks.TempDir,
		S3:          s3pub,
		Logger:      logger,
	})

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Registry: registry,
		Executor: runner,
		Tasks:    tasks,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create job service: %w", err)
	}

	artifacts, err := buildArtifactService(cfg.Tasks, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	return ServiceContainer{
		Jobs:          jobs,
		History:       history,
		Artifacts:     artifacts,
		Registry:      registry,
		Notifier:      notifier,
		Runner:        runner,
		HistoryRepo:   historyRepo,
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains dependencies for running services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) (*http.Server, error) {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil, nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
		ErrCh:    deps.errCh,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}
	logger := deps.logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))
	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}
		handles = append(handles, backgroundServiceHandle{mode: svc.mode, name: svc.name, done: done})
	}
	return handles
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			svcs := deps.cfg.Services
			return RunReaper(ctx, ReaperConfig{
				Jobs:    svcs.Registry,
				History: svcs.HistoryRepo,
				Logger:  deps.logger,
				Config:  reaperCfg,
				Metrics: svcs.Observability.sink(),
			})
		},
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

func startServices(deps *serviceStartupDeps) (ServiceStartupResult, error) {
	server, err := startHTTPServerIfEnabled(deps)
	if err != nil {
		return ServiceStartupResult{}, err
	}
	return ServiceStartupResult{
		HTTPServer: server,
		Background: startBackgroundServices(deps, []backgroundService{newReaperBackgroundService(deps)}),
	}, nil
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result, err := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})
	if err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return waitForShutdown(shutdownConfig{
		quit:        quit,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		services:    cfg.Services,
		grace:       cfg.Config.Jobs.ShutdownGrace,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	quit        <-chan os.Signal
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	services    ServiceContainer
	grace       time.Duration
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case <-cfg.quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains HTTP and running jobs in parallel, then waits for background loops.
func gracefulStop(cfg shutdownConfig) error {
	var g errgroup.Group

	if cfg.httpServer != nil {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
			defer cancel()
			return ShutdownHTTPServer(ShutdownConfig{
				Context:  ctx,
				Server:   cfg.httpServer,
				Services: cfg.services,
				Logger:   cfg.logger,
			})
		})
	}

	if cfg.services.Runner != nil {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.grace)
			defer cancel()
			cfg.logger.Info("waiting for running jobs", "in_flight", cfg.services.Runner.InFlight(), "grace", cfg.grace)
			if err := cfg.services.Runner.Shutdown(ctx); err != nil {
				cfg.logger.Warn("jobs cancelled at shutdown", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if sink := cfg.services.Observability.MetricsSink; sink != nil {
		if cerr := sink.Close(); cerr != nil {
			cfg.logger.Warn("failed to close statsd client", "error", cerr)
		}
	}
	return err
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
