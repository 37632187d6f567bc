package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringPtr(s string) *string { return &s }

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: `C:\Users\me\data.json`, want: "/mnt/c/Users/me/data.json"},
		{in: "D:/models//merged", want: "/mnt/d/models//merged"},
		{in: `E:\\nested`, want: "/mnt/e/nested"},
		{in: `output\run1`, want: "output/run1"},
		{in: " ./data/train.json ", want: "./data/train.json"},
		{in: "/abs/path", want: "/abs/path"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/srv/project/data/a.json", ResolvePath("/srv/project", `data\a.json`))
	assert.Equal(t, "/mnt/c/x", ResolvePath("/srv/project", `C:\x`))
	assert.Equal(t, "", ResolvePath("/srv/project", ""))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "train.json", BaseName("data/train.json"))
	assert.Equal(t, "merged", BaseName(`C:\out\merged\`))
	assert.Equal(t, "", BaseName(""))
}

func TestTrainRequest_Resolve(t *testing.T) {
	req := &TrainRequest{Parameters: map[string]any{
		"dataset_path":        `C:\data\alpaca.json`,
		"lora_target_modules": "q_proj, v_proj,,",
		"report_to":           "none",
		"prompt_template":     `{"system":"be brief"}`,
		"lora_r":              8,
	}}

	params, err := req.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/mnt/c/data/alpaca.json", params["dataset_path"])
	assert.Equal(t, []string{"q_proj", "v_proj"}, params["lora_target_modules"])
	assert.Equal(t, []string{"none"}, params["report_to"])
	assert.Equal(t, map[string]any{"system": "be brief"}, params["prompt_template"])
	assert.Equal(t, 8, params["lora_r"])
	assert.Equal(t, "Qwen/Qwen2.5-0.5B-Instruct", params["model_name"])
	assert.Equal(t, "Fine-tune Qwen/Qwen2.5-0.5B-Instruct on alpaca.json", TrainSummary(params))
	assert.Equal(t, "output", TrainMetadata(params)["output_dir"])
}

func TestTrainRequest_Resolve_BadPromptTemplate(t *testing.T) {
	req := &TrainRequest{Parameters: map[string]any{"prompt_template": "{not json"}}
	_, err := req.Resolve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPromptTemplate))
}

func TestTrainSummary_PrefersDatasetName(t *testing.T) {
	params := map[string]any{"model_name": "", "dataset_name": "org/alpaca", "dataset_path": "x/y.json"}
	assert.Equal(t, "Fine-tune model on alpaca", TrainSummary(params))
}

func TestEvaluateRequest(t *testing.T) {
	req := &EvaluateRequest{
		PredictionsFile: "predictions/run1.jsonl",
		ReferenceFile:   `data\ref.json`,
		OpenAIAPIKey:    stringPtr("  sk-test "),
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "Evaluate run1.jsonl vs ref.json", req.Summary())

	md := req.Metadata()
	assert.Equal(t, DefaultEvalModel, md["model"])
	assert.Equal(t, true, md["uses_custom_openai_key"])
	assert.Nil(t, md["output_file"])
	assert.NotContains(t, md, "openai_api_key")

	assert.EqualError(t, (&EvaluateRequest{ReferenceFile: "r"}).Validate(), "predictions_file is required")
}

func TestMergeRequest(t *testing.T) {
	req := &MergeRequest{BaseModelName: "base", AdapterPath: "output/adapter", OutputDir: "merged_model/v1"}
	require.NoError(t, req.Validate())
	req.ApplyDefaults()
	assert.Equal(t, "auto", req.Device)
	require.NotNil(t, req.TrustRemoteCode)
	assert.True(t, *req.TrustRemoteCode)
	assert.Equal(t, "Merge adapter -> v1", req.Summary())

	assert.EqualError(t, (&MergeRequest{BaseModelName: "b", AdapterPath: "a"}).Validate(), "output_dir is required")
}

func TestPublishRequest(t *testing.T) {
	req := &PublishRequest{SourceDir: "merged_model", RepoID: "me/model"}
	require.NoError(t, req.Validate())
	req.ApplyDefaults()
	assert.Equal(t, PublishTargetHub, req.Target)
	assert.Equal(t, "model", req.RepoType)
	assert.Equal(t, "Upload merged model", *req.CommitMessage)
	assert.Equal(t, "Upload merged_model to me/model", req.Summary())

	bad := &PublishRequest{SourceDir: "x", Target: "ftp"}
	require.Error(t, bad.Validate())
}

func TestTrainParamSpecs_DefaultsMatchSpecs(t *testing.T) {
	specs := TrainParamSpecs()
	defaults := TrainParamDefaults()
	require.Len(t, defaults, len(specs))
	for _, s := range specs {
		assert.Equal(t, s.Default, defaults[s.Name], s.Name)
	}
	specs[0].Name = "mutated"
	assert.Equal(t, "model_name", TrainParamSpecs()[0].Name)
}
