// Package mocks provides mock implementations of the core ports for service and HTTP tests.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockJobHistoryRepository(ctrl)
//	repo.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for JobHistoryRepository interface from internal/core package.
// This creates MockJobHistoryRepository with methods: Record, List, DeleteBefore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_history_repository_mock.go github.com/qlora-pipeline/controlplane/internal/core JobHistoryRepository

// Generate mock for JobExecutor interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_executor_mock.go github.com/qlora-pipeline/controlplane/internal/core JobExecutor

// Generate mock for TaskTargets interface from internal/core package.
// This creates MockTaskTargets with methods: Train, Evaluate, Merge, Publish
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=task_targets_mock.go github.com/qlora-pipeline/controlplane/internal/core TaskTargets

// Generate mock for JobPruner interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_pruner_mock.go github.com/qlora-pipeline/controlplane/internal/core JobPruner

// Generate mock for AdapterCatalog interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=adapter_catalog_mock.go github.com/qlora-pipeline/controlplane/internal/core AdapterCatalog
