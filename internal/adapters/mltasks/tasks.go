// Package mltasks builds the target operations behind each job kind. Training,
// evaluation, merging and Hugging Face uploads run as subprocesses whose combined
// output becomes the job log; S3 publishing runs in-process.
package mltasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

// Options configures the task targets.
type Options struct {
	PythonBin   string
	ProjectRoot string
	TrainScript string
	EvalScript  string
	MergeScript string
	HubCLI      string
	HFTokenEnv  []string
	KillDelay   time.Duration
	// TempDir holds evaluation results when the caller names no output file.
	// Empty means the OS temp directory.
	TempDir      string
	S3           *S3Publisher
	Logger       *slog.Logger
	Getenv       func(string) string
	RunProcess   func(ctx context.Context, out io.Writer, p Process) error
	DirExists    func(path string) bool
	ReadJSONFile func(path string) (any, error)
}

// Process describes one subprocess invocation.
type Process struct {
	Name string
	Args []string
	// Env is appended to the server's own environment for this process only.
	Env       []string
	Dir       string
	KillDelay time.Duration
}

// Tasks implements core.TaskTargets.
type Tasks struct {
	opts   Options
	logger *slog.Logger
}

var _ core.TaskTargets = (*Tasks)(nil)

// New constructs the task targets, filling defaults for unset options.
func New(opts Options) *Tasks {
	if opts.PythonBin == "" {
		opts.PythonBin = "python3"
	}
	if opts.TrainScript == "" {
		opts.TrainScript = "train.py"
	}
	if opts.EvalScript == "" {
		opts.EvalScript = "eval.py"
	}
	if opts.MergeScript == "" {
		opts.MergeScript = "merge_multiple_loras.py"
	}
	if opts.HubCLI == "" {
		opts.HubCLI = "huggingface-cli"
	}
	if opts.HFTokenEnv == nil {
		opts.HFTokenEnv = []string{"HF_TOKEN", "HUGGINGFACEHUB_API_TOKEN"}
	}
	if opts.KillDelay <= 0 {
		opts.KillDelay = 10 * time.Second
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.RunProcess == nil {
		opts.RunProcess = RunProcess
	}
	if opts.DirExists == nil {
		opts.DirExists = dirExists
	}
	if opts.ReadJSONFile == nil {
		opts.ReadJSONFile = readJSONFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{opts: opts, logger: logger.With("component", "mltasks")}
}

// Train runs the training script with the resolved parameters as flags.
func (t *Tasks) Train(params map[string]any) core.Target {
	return func(ctx context.Context, out io.Writer) (any, error) {
		args := append([]string{"-u", t.opts.TrainScript}, FireArgs(params)...)
		if err := t.run(ctx, out, t.opts.PythonBin, args, nil); err != nil {
			return nil, err
		}
		return map[string]any{"output_dir": params["output_dir"]}, nil
	}
}

// Evaluate runs the evaluation script and returns the metrics it wrote. Without an
// output file the script writes to a scratch file that is removed afterwards. A
// caller-supplied API key is visible only to the evaluation subprocess.
func (t *Tasks) Evaluate(req model.EvaluateRequest) core.Target {
	return func(ctx context.Context, out io.Writer) (any, error) {
		root := t.opts.ProjectRoot
		preds := model.ResolvePath(root, req.PredictionsFile)
		ref := model.ResolvePath(root, req.ReferenceFile)
		args := []string{"-u", t.opts.EvalScript,
			"--predictions", preds,
			"--reference", ref,
			"--model", req.EvalModel(),
		}
		var output string
		if req.OutputFile != nil && strings.TrimSpace(*req.OutputFile) != "" {
			output = model.ResolvePath(root, *req.OutputFile)
		} else {
			scratch, err := t.scratchFile("qlora-eval-*.json")
			if err != nil {
				return nil, fmt.Errorf("create evaluation results file: %w", err)
			}
			defer os.Remove(scratch)
			output = scratch
		}
		args = append(args, "--output", output)

		var env []string
		if key := req.APIKey(); key != "" {
			env = append(env, "OPENAI_API_KEY="+key)
		}
		if err := t.run(ctx, out, t.opts.PythonBin, args, env); err != nil {
			return nil, err
		}

		result, err := t.opts.ReadJSONFile(output)
		if err != nil {
			return nil, fmt.Errorf("read evaluation results: %w", err)
		}
		return result, nil
	}
}

// Merge folds one adapter into its base model.
func (t *Tasks) Merge(req model.MergeRequest) core.Target {
	return func(ctx context.Context, out io.Writer) (any, error) {
		root := t.opts.ProjectRoot
		adapter := model.ResolvePath(root, req.AdapterPath)
		outputDir := model.ResolvePath(root, req.OutputDir)

		trust := req.TrustRemoteCode == nil || *req.TrustRemoteCode
		args := append([]string{"-u", t.opts.MergeScript}, FireArgs(map[string]any{
			"base_model_name":   req.BaseModelName,
			"adapter_paths":     []string{adapter},
			"output_dir":        outputDir,
			"device":            req.Device,
			"trust_remote_code": trust,
		})...)
		if err := t.run(ctx, out, t.opts.PythonBin, args, nil); err != nil {
			return nil, err
		}
		return map[string]any{"output_dir": outputDir}, nil
	}
}

// Publish uploads a directory to the Hugging Face Hub or to S3.
func (t *Tasks) Publish(req model.PublishRequest) core.Target {
	return func(ctx context.Context, out io.Writer) (any, error) {
		source := model.ResolvePath(t.opts.ProjectRoot, req.SourceDir)
		if !t.opts.DirExists(source) {
			return nil, fmt.Errorf("Source directory does not exist: %s", source)
		}
		repoID := strings.TrimSpace(req.RepoID)
		if repoID == "" {
			return nil, errors.New("A Hugging Face repo ID is required")
		}

		if req.Target == model.PublishTargetS3 {
			if t.opts.S3 == nil {
				return nil, errors.New("S3 publishing is not configured")
			}
			return t.opts.S3.Publish(ctx, out, source, repoID)
		}
		return t.publishHub(ctx, out, req, source, repoID)
	}
}

func (t *Tasks) publishHub(ctx context.Context, out io.Writer, req model.PublishRequest, source, repoID string) (any, error) {
	fmt.Fprintf(out, "Preparing upload of '%s' to Hugging Face repo '%s'\n", source, repoID)
	if req.Private {
		fmt.Fprintln(out, "Target repository will be private")
	}

	token := t.hubToken(req.Token)
	var env []string
	if token != "" {
		fmt.Fprintln(out, "Using provided Hugging Face access token")
		env = append(env, "HF_TOKEN="+token)
	} else {
		fmt.Fprintln(out, "No Hugging Face token provided; attempting upload with existing credentials")
	}

	commit := "Upload merged model"
	if req.CommitMessage != nil && strings.TrimSpace(*req.CommitMessage) != "" {
		commit = *req.CommitMessage
	}
	args := []string{"upload", repoID, source, ".",
		"--repo-type=" + req.RepoType,
		"--commit-message=" + commit,
	}
	if req.Private {
		args = append(args, "--private")
	}

	fmt.Fprintln(out, "Repository ready; starting upload...")
	if err := t.run(ctx, out, t.opts.HubCLI, args, env); err != nil {
		return nil, fmt.Errorf("Hugging Face Hub error: %w", err)
	}
	fmt.Fprintln(out, "Upload completed successfully")
	return map[string]any{"repo_id": repoID}, nil
}

func (t *Tasks) scratchFile(pattern string) (string, error) {
	f, err := os.CreateTemp(t.opts.TempDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", errors.Join(err, os.Remove(name))
	}
	return name, nil
}

// hubToken prefers the request token, then the configured environment fallbacks.
func (t *Tasks) hubToken(requested *string) string {
	if requested != nil {
		if tok := strings.TrimSpace(*requested); tok != "" {
			return tok
		}
	}
	for _, name := range t.opts.HFTokenEnv {
		if tok := strings.TrimSpace(t.opts.Getenv(name)); tok != "" {
			return tok
		}
	}
	return ""
}

func (t *Tasks) run(ctx context.Context, out io.Writer, name string, args, env []string) error {
	p := Process{
		Name:      name,
		Args:      args,
		Env:       append([]string{"PYTHONUNBUFFERED=1"}, env...),
		Dir:       t.opts.ProjectRoot,
		KillDelay: t.opts.KillDelay,
	}
	t.logger.DebugContext(ctx, "starting subprocess", "name", name, "args", redactArgs(args))
	return t.opts.RunProcess(ctx, out, p)
}

// RunProcess executes p with stdout and stderr both written to out.
func RunProcess(ctx context.Context, out io.Writer, p Process) error {
	cmd := exec.CommandContext(ctx, p.Name, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = p.KillDelay

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return fmt.Errorf("%s exited with status %d: %w", filepath.Base(p.Name), exitErr.ExitCode(), err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s interrupted: %w", filepath.Base(p.Name), ctx.Err())
	}
	return fmt.Errorf("run %s: %w", filepath.Base(p.Name), err)
}

func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.Contains(strings.ToLower(a), "token=") {
			a = a[:strings.Index(a, "=")+1] + "***"
		}
		out[i] = a
	}
	return out
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func readJSONFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
