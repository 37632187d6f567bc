package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/qlora-pipeline/controlplane/internal/core"
	domainjob "github.com/qlora-pipeline/controlplane/internal/domain/job"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Registry *domainjob.Registry // Required: in-memory job registry
	Executor core.JobExecutor    // Required: launches job targets
	Tasks    core.TaskTargets    // Required: builds targets per job kind
	Notifier *domainjob.Notifier // Optional: wakeups for log tails; must be the registry's notifier
	Logger   *slog.Logger        // Optional: structured logger
}

// JobService is the facade the API uses to submit and inspect jobs.
//
// Submissions create a pending record and hand the target to the executor before
// returning, so callers get a job id immediately and poll for progress.
type JobService struct {
	registry *domainjob.Registry
	executor core.JobExecutor
	tasks    core.TaskTargets
	notifier *domainjob.Notifier
	logger   *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Registry == nil {
		return nil, errors.New("job registry is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("job executor is required")
	}
	if opts.Tasks == nil {
		return nil, errors.New("task targets are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobService{
		registry: opts.Registry,
		executor: opts.Executor,
		tasks:    opts.Tasks,
		notifier: opts.Notifier,
		logger:   logger.With("component", "job_service"),
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// SubmitTrain starts a fine-tuning run.
func (s *JobService) SubmitTrain(ctx context.Context, req model.TrainRequest) (model.SubmitResponse, error) {
	params, err := req.Resolve()
	if err != nil {
		if errors.Is(err, model.ErrInvalidPromptTemplate) {
			msg := strings.TrimPrefix(err.Error(), model.ErrInvalidPromptTemplate.Error()+": ")
			return model.SubmitResponse{}, apperrors.ValidationField("prompt_template", "Invalid prompt_template JSON: "+msg)
		}
		return model.SubmitResponse{}, apperrors.Validation(err.Error())
	}

	return s.submit(ctx, model.JobKindTrain, model.TrainSummary(params), model.TrainMetadata(params), s.tasks.Train(params)), nil
}

// SubmitEvaluate starts an evaluation of a predictions file.
func (s *JobService) SubmitEvaluate(ctx context.Context, req model.EvaluateRequest) (model.SubmitResponse, error) {
	if err := req.Validate(); err != nil {
		return model.SubmitResponse{}, validationError(err)
	}
	req.PredictionsFile = model.NormalizePath(req.PredictionsFile)
	req.ReferenceFile = model.NormalizePath(req.ReferenceFile)
	if req.OutputFile != nil {
		out := model.NormalizePath(*req.OutputFile)
		req.OutputFile = &out
	}

	return s.submit(ctx, model.JobKindEvaluate, req.Summary(), req.Metadata(), s.tasks.Evaluate(req)), nil
}

// SubmitMerge starts folding an adapter into its base model.
func (s *JobService) SubmitMerge(ctx context.Context, req model.MergeRequest) (model.SubmitResponse, error) {
	if err := req.Validate(); err != nil {
		return model.SubmitResponse{}, validationError(err)
	}
	req.ApplyDefaults()
	req.BaseModelName = model.NormalizePath(req.BaseModelName)
	req.AdapterPath = model.NormalizePath(req.AdapterPath)
	req.OutputDir = model.NormalizePath(req.OutputDir)

	return s.submit(ctx, model.JobKindMerge, req.Summary(), req.Metadata(), s.tasks.Merge(req)), nil
}

// SubmitPublish starts an upload of a model directory.
func (s *JobService) SubmitPublish(ctx context.Context, req model.PublishRequest) (model.SubmitResponse, error) {
	if err := req.Validate(); err != nil {
		return model.SubmitResponse{}, validationError(err)
	}
	req.ApplyDefaults()
	req.SourceDir = model.NormalizePath(req.SourceDir)
	req.RepoID = strings.TrimSpace(req.RepoID)

	return s.submit(ctx, model.JobKindPublish, req.Summary(), req.Metadata(), s.tasks.Publish(req)), nil
}

func (s *JobService) submit(
	ctx context.Context,
	kind model.JobKind,
	summary string,
	metadata map[string]any,
	target core.Target,
) model.SubmitResponse {
	id := s.registry.Create(kind, summary, metadata)
	s.executor.Start(id, target)

	s.logger.InfoContext(ctx, "job submitted", "job_id", id, "kind", kind, "summary", summary)
	return model.SubmitResponse{JobID: id, Status: model.SubmitStatusQueued}
}

// Get returns a snapshot of one job.
func (s *JobService) Get(_ context.Context, id string) (model.Job, error) {
	j, err := s.registry.Get(id)
	if err != nil {
		return model.Job{}, mapRegistryError(err)
	}
	return j, nil
}

// JobListOptions narrows a job listing.
type JobListOptions struct {
	Kind   model.JobKind
	Status model.JobStatus
	// Filter is a JMESPath expression evaluated against each job's JSON form.
	// Jobs for which it yields a falsy value are dropped.
	Filter string
}

// List returns job snapshots ordered by creation time.
func (s *JobService) List(ctx context.Context, opts JobListOptions) ([]model.Job, error) {
	filter := strings.TrimSpace(opts.Filter)
	if filter != "" {
		if _, err := jmespath.Compile(filter); err != nil {
			return nil, apperrors.ValidationField("filter", fmt.Sprintf("invalid filter expression: %v", err))
		}
	}

	jobs := s.registry.List()
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if opts.Kind != "" && j.Kind != opts.Kind {
			continue
		}
		if opts.Status != "" && j.Status() != opts.Status {
			continue
		}
		if filter != "" {
			ok, err := matchFilter(filter, j)
			if err != nil {
				s.logger.DebugContext(ctx, "job filter evaluation failed", "job_id", j.ID, "error", err)
				continue
			}
			if !ok {
				continue
			}
		}
		out = append(out, j)
	}
	return out, nil
}

// Stats counts jobs per status.
func (s *JobService) Stats(_ context.Context) model.JobStats {
	return s.registry.Stats()
}

// Logs returns a page of a job's log lines from offset since.
func (s *JobService) Logs(_ context.Context, id string, since int) (model.LogPage, error) {
	if since < 0 {
		return model.LogPage{}, apperrors.ValidationField("since", "since must be a non-negative integer")
	}
	page, err := s.registry.Logs(id, since)
	if err != nil {
		return model.LogPage{}, mapRegistryError(err)
	}
	return page, nil
}

// Watch subscribes to wakeups for a job's output and state changes.
// The returned func must be called to release the subscription. Without a
// notifier the channel is nil and callers fall back to polling.
func (s *JobService) Watch(id string) (func(), <-chan struct{}) {
	if s.notifier == nil {
		return func() {}, nil
	}
	return s.notifier.Subscribe(id)
}

// TrainParameters lists the tunable training parameters.
func (s *JobService) TrainParameters() []model.TrainParamSpec {
	return model.TrainParamSpecs()
}

func mapRegistryError(err error) error {
	if errors.Is(err, domainjob.ErrJobNotFound) {
		return apperrors.NotFound("Job not found")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "job registry error")
}

func validationError(err error) error {
	msg := err.Error()
	field, _, _ := strings.Cut(msg, " ")
	if strings.HasSuffix(msg, " is required") {
		return apperrors.ValidationField(field, msg)
	}
	return apperrors.Validation(msg)
}

func matchFilter(expr string, j model.Job) (bool, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return false, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, err
	}
	res, err := jmespath.Search(expr, doc)
	if err != nil {
		return false, err
	}
	return truthy(res), nil
}

// truthy follows JMESPath truth rules: false, null and empty values are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
