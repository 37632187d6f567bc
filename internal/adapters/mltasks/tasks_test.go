package mltasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
)

type processRecorder struct {
	calls  []Process
	output string
	err    error
}

func (p *processRecorder) run(_ context.Context, out io.Writer, proc Process) error {
	p.calls = append(p.calls, proc)
	if p.output != "" {
		_, _ = io.WriteString(out, p.output)
	}
	return p.err
}

func newTestTasks(rec *processRecorder, mutate func(*Options)) *Tasks {
	opts := Options{
		PythonBin:   "python3",
		ProjectRoot: "/srv/qlora",
		RunProcess:  rec.run,
		Getenv:      func(string) string { return "" },
		DirExists:   func(string) bool { return true },
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

func strPtr(s string) *string { return &s }

func TestTrainPassesParametersAsFlags(t *testing.T) {
	rec := &processRecorder{output: "epoch 1\n"}
	tasks := newTestTasks(rec, nil)

	var out bytes.Buffer
	res, err := tasks.Train(map[string]any{
		"model_name":          "base",
		"output_dir":          "/out",
		"num_epochs":          3,
		"use_4bit":            true,
		"lora_target_modules": []string{"q_proj", "v_proj"},
		"resume":              nil,
	})(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"output_dir": "/out"}, res)
	assert.Equal(t, "epoch 1\n", out.String())

	require.Len(t, rec.calls, 1)
	call := rec.calls[0]
	assert.Equal(t, "python3", call.Name)
	assert.Equal(t, "/srv/qlora", call.Dir)
	assert.Contains(t, call.Env, "PYTHONUNBUFFERED=1")
	assert.Equal(t, []string{
		"-u", "train.py",
		`--lora_target_modules=["q_proj","v_proj"]`,
		"--model_name=base",
		"--num_epochs=3",
		"--output_dir=/out",
		"--use_4bit=True",
	}, call.Args)
}

func TestEvaluateKeepsAPIKeyInSubprocessEnv(t *testing.T) {
	rec := &processRecorder{}
	tasks := newTestTasks(rec, func(o *Options) {
		o.ReadJSONFile = func(path string) (any, error) {
			return map[string]any{"path": path}, nil
		}
	})

	req := model.EvaluateRequest{
		PredictionsFile: "results/preds.json",
		ReferenceFile:   `C:\data\ref.json`,
		OutputFile:      strPtr("evaluation/out.json"),
		OpenAIAPIKey:    strPtr(" sk-test "),
	}
	res, err := tasks.Evaluate(req)(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "/srv/qlora/evaluation/out.json"}, res)

	require.Len(t, rec.calls, 1)
	call := rec.calls[0]
	assert.Equal(t, []string{
		"-u", "eval.py",
		"--predictions", "/srv/qlora/results/preds.json",
		"--reference", "/mnt/c/data/ref.json",
		"--model", model.DefaultEvalModel,
		"--output", "/srv/qlora/evaluation/out.json",
	}, call.Args)
	assert.Contains(t, call.Env, "OPENAI_API_KEY=sk-test")
	assert.Empty(t, os.Getenv("OPENAI_API_KEY"))
}

func TestEvaluateWithoutOutputFileReturnsMetrics(t *testing.T) {
	dir := t.TempDir()
	metrics := map[string]any{"aggregate_metrics": map[string]any{"avg_relevance": 4.5}}
	var readPath string
	rec := &processRecorder{}
	tasks := newTestTasks(rec, func(o *Options) {
		o.TempDir = dir
		o.ReadJSONFile = func(path string) (any, error) {
			readPath = path
			_, err := os.Stat(path)
			require.NoError(t, err, "results file must exist while it is read")
			return metrics, nil
		}
	})

	res, err := tasks.Evaluate(model.EvaluateRequest{PredictionsFile: "/p", ReferenceFile: "/r"})(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, metrics, res)

	require.Len(t, rec.calls, 1)
	args := rec.calls[0].Args
	require.Equal(t, "--output", args[len(args)-2])
	assert.Equal(t, readPath, args[len(args)-1])
	assert.Equal(t, dir, filepath.Dir(readPath))
	for _, env := range rec.calls[0].Env {
		assert.False(t, strings.HasPrefix(env, "OPENAI_API_KEY="))
	}

	_, err = os.Stat(readPath)
	assert.True(t, os.IsNotExist(err), "scratch results file should be removed")
}

func TestEvaluateScratchFileRemovedOnFailure(t *testing.T) {
	dir := t.TempDir()
	rec := &processRecorder{err: errors.New("eval.py exited with status 1")}
	tasks := newTestTasks(rec, func(o *Options) { o.TempDir = dir })

	_, err := tasks.Evaluate(model.EvaluateRequest{PredictionsFile: "/p", ReferenceFile: "/r"})(context.Background(), io.Discard)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMergeBuildsAdapterList(t *testing.T) {
	rec := &processRecorder{}
	tasks := newTestTasks(rec, nil)

	req := model.MergeRequest{BaseModelName: "base", AdapterPath: "adapters/a1", OutputDir: "merged"}
	req.ApplyDefaults()
	res, err := tasks.Merge(req)(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"output_dir": "/srv/qlora/merged"}, res)

	assert.Equal(t, []string{
		"-u", "merge_multiple_loras.py",
		`--adapter_paths=["/srv/qlora/adapters/a1"]`,
		"--base_model_name=base",
		"--device=auto",
		"--output_dir=/srv/qlora/merged",
		"--trust_remote_code=True",
	}, rec.calls[0].Args)
}

func TestPublishMissingSourceDirectory(t *testing.T) {
	rec := &processRecorder{}
	tasks := newTestTasks(rec, func(o *Options) {
		o.DirExists = func(string) bool { return false }
	})

	_, err := tasks.Publish(model.PublishRequest{SourceDir: "/nope", RepoID: "me/model"})(context.Background(), io.Discard)
	require.EqualError(t, err, "Source directory does not exist: /nope")
	assert.Empty(t, rec.calls)
}

func TestPublishBlankRepoID(t *testing.T) {
	rec := &processRecorder{}
	tasks := newTestTasks(rec, nil)

	_, err := tasks.Publish(model.PublishRequest{SourceDir: "/src", RepoID: "  "})(context.Background(), io.Discard)
	require.EqualError(t, err, "A Hugging Face repo ID is required")
}

func TestPublishHubUsesTokenFallback(t *testing.T) {
	rec := &processRecorder{}
	tasks := newTestTasks(rec, func(o *Options) {
		o.Getenv = func(name string) string {
			if name == "HUGGINGFACEHUB_API_TOKEN" {
				return "hf_fallback"
			}
			return ""
		}
	})

	req := model.PublishRequest{SourceDir: "/src/merged", RepoID: " me/model ", Private: true}
	req.ApplyDefaults()

	var out bytes.Buffer
	res, err := tasks.Publish(req)(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"repo_id": "me/model"}, res)

	call := rec.calls[0]
	assert.Equal(t, "huggingface-cli", call.Name)
	assert.Equal(t, []string{"upload", "me/model", "/src/merged", ".",
		"--repo-type=model", "--commit-message=Upload merged model", "--private"}, call.Args)
	assert.Contains(t, call.Env, "HF_TOKEN=hf_fallback")

	logs := out.String()
	assert.Contains(t, logs, "Preparing upload of '/src/merged' to Hugging Face repo 'me/model'")
	assert.Contains(t, logs, "Target repository will be private")
	assert.Contains(t, logs, "Using provided Hugging Face access token")
	assert.Contains(t, logs, "Upload completed successfully")
}

func TestPublishHubWrapsErrors(t *testing.T) {
	rec := &processRecorder{err: errors.New("403 forbidden")}
	tasks := newTestTasks(rec, nil)

	req := model.PublishRequest{SourceDir: "/src", RepoID: "me/model"}
	req.ApplyDefaults()
	var out bytes.Buffer
	_, err := tasks.Publish(req)(context.Background(), &out)
	require.EqualError(t, err, "Hugging Face Hub error: 403 forbidden")
	assert.Contains(t, out.String(), "No Hugging Face token provided")
}

func TestPublishS3NotConfigured(t *testing.T) {
	tasks := newTestTasks(&processRecorder{}, nil)
	_, err := tasks.Publish(model.PublishRequest{SourceDir: "/src", RepoID: "me/model", Target: model.PublishTargetS3})(context.Background(), io.Discard)
	require.EqualError(t, err, "S3 publishing is not configured")
}

func TestRunProcessCapturesOutputAndExitStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "task.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo out; echo err 1>&2; echo \"$QLORA_TEST\"; exit 3\n"), 0o600))

	var out bytes.Buffer
	err := RunProcess(context.Background(), &out, Process{
		Name: "sh",
		Args: []string{script},
		Env:  []string{"QLORA_TEST=visible"},
		Dir:  dir,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sh exited with status 3")
	assert.Contains(t, out.String(), "out\n")
	assert.Contains(t, out.String(), "err\n")
	assert.Contains(t, out.String(), "visible\n")
}

func TestFireArgsLiterals(t *testing.T) {
	args := FireArgs(map[string]any{
		"flag":     false,
		"rate":     2e-4,
		"template": map[string]any{"a": true, "b": nil},
		"mixed":    []any{"x", 1.0},
	})
	assert.Equal(t, []string{
		"--flag=False",
		`--mixed=["x",1]`,
		"--rate=0.0002",
		`--template={"a":True,"b":None}`,
	}, args)
}

func TestRedactArgs(t *testing.T) {
	assert.Equal(t, []string{"--token=***", "--x=1"}, redactArgs([]string{"--token=secret", "--x=1"}))
}
