package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
)

const defaultEvalResultsFile = "evaluation/latest_evaluation.json"

// ArtifactServiceOptions groups dependencies for ArtifactService.
type ArtifactServiceOptions struct {
	ProjectRoot     string              // Required: root that relative paths resolve against
	Adapters        core.AdapterCatalog // Required: adapter registry
	EvalResultsFile string              // Optional: default evaluation results, relative to ProjectRoot
	Logger          *slog.Logger        // Optional: structured logger
}

// ArtifactService exposes what jobs leave on disk: evaluation results, the adapter
// registry that merge and publish jobs pick from, and a catalog of job inputs.
type ArtifactService struct {
	root     string
	adapters core.AdapterCatalog
	evalFile string
	logger   *slog.Logger
}

// NewArtifactService constructs a new ArtifactService.
func NewArtifactService(opts ArtifactServiceOptions) (*ArtifactService, error) {
	if strings.TrimSpace(opts.ProjectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if opts.Adapters == nil {
		return nil, errors.New("adapter catalog is required")
	}
	root, err := filepath.Abs(opts.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	evalFile := strings.TrimSpace(opts.EvalResultsFile)
	if evalFile == "" {
		evalFile = defaultEvalResultsFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ArtifactService{
		root:     root,
		adapters: opts.Adapters,
		evalFile: evalFile,
		logger:   logger.With("component", "artifact_service"),
	}, nil
}

// EvaluationResults loads an evaluation results document. An empty path reads the
// latest results. The returned document's metadata.source_path names the file read.
func (s *ArtifactService) EvaluationResults(_ context.Context, path string) (map[string]any, error) {
	var target string
	notFound := func() error { return apperrors.NotFound("Evaluation file not found: " + target) }
	if strings.TrimSpace(path) == "" {
		target = model.ResolvePath(s.root, s.evalFile)
		notFound = func() error { return apperrors.NotFound("No evaluation results found") }
	} else {
		target = model.ResolvePath(s.root, path)
	}

	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound()
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "read evaluation results")
	}
	if info.IsDir() {
		return nil, apperrors.ValidationField("path", "Evaluation path is a directory: "+target)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "read evaluation results")
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Validationf("Invalid evaluation JSON: %v", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	md, ok := doc["metadata"].(map[string]any)
	if !ok {
		md = map[string]any{}
		doc["metadata"] = md
	}
	md["source_path"] = target
	return doc, nil
}

// ListAdapters returns the registered adapters.
func (s *ArtifactService) ListAdapters(ctx context.Context) ([]model.AdapterEntry, error) {
	return s.adapters.List(ctx)
}

// DeleteAdapter drops an adapter from the registry. With RemoveFiles it also deletes
// the adapter directory, which must lie inside the project root; that check happens
// before the registry is touched.
func (s *ArtifactService) DeleteAdapter(ctx context.Context, req model.AdapterDeleteRequest) (model.AdapterDeleteResult, error) {
	if err := req.Validate(); err != nil {
		return model.AdapterDeleteResult{}, validationError(err)
	}
	path := model.NormalizePath(req.Path)

	var files string
	if req.RemoveFiles {
		files = model.ResolvePath(s.root, path)
		if !s.contains(files) {
			return model.AdapterDeleteResult{}, apperrors.ValidationField("path", "Adapter path must reside within project directory")
		}
	}

	removed, err := s.adapters.Remove(ctx, path)
	if err != nil {
		return model.AdapterDeleteResult{}, err
	}
	res := model.AdapterDeleteResult{Removed: removed}

	if req.RemoveFiles {
		if _, err := os.Lstat(files); err == nil {
			if err := os.RemoveAll(files); err != nil {
				return res, apperrors.Wrap(err, apperrors.ErrCodeInternal, "remove adapter files")
			}
			res.RemovedFiles = true
		}
	}

	s.logger.InfoContext(ctx, "adapter removed", "path", path, "removed_files", res.RemovedFiles)
	return res, nil
}

// contains reports whether p lies strictly below the project root, both as written
// and after resolving symlinks.
func (s *ArtifactService) contains(p string) bool {
	if !within(s.root, p) {
		return false
	}
	realRoot, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return true
	}
	realPath, err := filepath.EvalSymlinks(p)
	if err != nil {
		// Nothing on disk to follow yet.
		return true
	}
	return within(realRoot, realPath)
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(p))
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
