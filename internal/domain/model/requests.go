package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultEvalModel is the judge model used by evaluations that don't name one.
const DefaultEvalModel = "gpt-4o-mini"

// Publish targets.
const (
	PublishTargetHub = "hub"
	PublishTargetS3  = "s3"
)

// ErrInvalidPromptTemplate is returned when a train request carries a prompt template that is not JSON.
var ErrInvalidPromptTemplate = errors.New("invalid prompt_template JSON")

// TrainRequest carries fine-tuning parameters keyed by TrainParamSpec name.
type TrainRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// trainPathKeys are the parameters holding filesystem paths.
var trainPathKeys = []string{
	"model_name", "dataset_path", "output_dir", "model_cache_dir",
	"resume_from_checkpoint", "adapter_config_path",
}

// trainListKeys are the parameters that accept a comma separated string in place of a list.
var trainListKeys = []string{"lora_target_modules", "modules_to_save", "report_to"}

// Resolve merges the request over the parameter defaults and normalises the result.
func (r *TrainRequest) Resolve() (map[string]any, error) {
	params := TrainParamDefaults()
	for k, v := range r.Parameters {
		params[k] = v
	}

	for _, key := range trainPathKeys {
		if s, ok := params[key].(string); ok && s != "" {
			params[key] = NormalizePath(s)
		}
	}
	for _, key := range trainListKeys {
		if s, ok := params[key].(string); ok && s != "" {
			params[key] = splitCommaList(s)
		}
	}
	if s, ok := params["prompt_template"].(string); ok && s != "" {
		var tmpl any
		if err := json.Unmarshal([]byte(s), &tmpl); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPromptTemplate, err)
		}
		params["prompt_template"] = tmpl
	}
	return params, nil
}

// TrainSummary describes a resolved training run for job listings.
func TrainSummary(params map[string]any) string {
	model, _ := params["model_name"].(string)
	if model == "" {
		model = "model"
	}
	summary := "Fine-tune " + model

	label, _ := params["dataset_name"].(string)
	if label == "" {
		label, _ = params["dataset_path"].(string)
	}
	if label = BaseName(label); label != "" {
		summary += " on " + label
	}
	return summary
}

// TrainMetadata extracts the job metadata recorded for a training run.
func TrainMetadata(params map[string]any) map[string]any {
	return map[string]any{
		"model_name":   params["model_name"],
		"dataset_path": params["dataset_path"],
		"dataset_name": params["dataset_name"],
		"output_dir":   params["output_dir"],
	}
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EvaluateRequest scores a predictions file against a reference file.
type EvaluateRequest struct {
	PredictionsFile string  `json:"predictions_file"`
	ReferenceFile   string  `json:"reference_file"`
	OutputFile      *string `json:"output_file,omitempty"`
	Model           *string `json:"model,omitempty"`
	OpenAIAPIKey    *string `json:"openai_api_key,omitempty"`
}

// Validate validates the EvaluateRequest fields.
func (r *EvaluateRequest) Validate() error {
	if strings.TrimSpace(r.PredictionsFile) == "" {
		return errors.New("predictions_file is required")
	}
	if strings.TrimSpace(r.ReferenceFile) == "" {
		return errors.New("reference_file is required")
	}
	return nil
}

// EvalModel returns the requested judge model or the default.
func (r *EvaluateRequest) EvalModel() string {
	if r.Model != nil && strings.TrimSpace(*r.Model) != "" {
		return strings.TrimSpace(*r.Model)
	}
	return DefaultEvalModel
}

// APIKey returns the trimmed caller supplied OpenAI key, or "".
func (r *EvaluateRequest) APIKey() string {
	if r.OpenAIAPIKey == nil {
		return ""
	}
	return strings.TrimSpace(*r.OpenAIAPIKey)
}

// Summary describes the evaluation for job listings.
func (r *EvaluateRequest) Summary() string {
	return fmt.Sprintf("Evaluate %s vs %s", BaseName(r.PredictionsFile), BaseName(r.ReferenceFile))
}

// Metadata returns the job metadata recorded for the evaluation. The API key itself is never recorded.
func (r *EvaluateRequest) Metadata() map[string]any {
	md := map[string]any{
		"predictions_file": r.PredictionsFile,
		"reference_file":   r.ReferenceFile,
		"output_file":      optionalString(r.OutputFile),
		"model":            r.EvalModel(),
	}
	if r.APIKey() != "" {
		md["uses_custom_openai_key"] = true
	}
	return md
}

// MergeRequest folds a LoRA adapter into its base model.
type MergeRequest struct {
	BaseModelName   string `json:"base_model_name"`
	AdapterPath     string `json:"adapter_path"`
	OutputDir       string `json:"output_dir"`
	Device          string `json:"device"`
	TrustRemoteCode *bool  `json:"trust_remote_code,omitempty"`
}

// Validate validates the MergeRequest fields.
func (r *MergeRequest) Validate() error {
	if strings.TrimSpace(r.BaseModelName) == "" {
		return errors.New("base_model_name is required")
	}
	if strings.TrimSpace(r.AdapterPath) == "" {
		return errors.New("adapter_path is required")
	}
	if strings.TrimSpace(r.OutputDir) == "" {
		return errors.New("output_dir is required")
	}
	return nil
}

// ApplyDefaults fills optional fields.
func (r *MergeRequest) ApplyDefaults() {
	if strings.TrimSpace(r.Device) == "" {
		r.Device = "auto"
	}
	if r.TrustRemoteCode == nil {
		t := true
		r.TrustRemoteCode = &t
	}
}

// Summary describes the merge for job listings.
func (r *MergeRequest) Summary() string {
	return fmt.Sprintf("Merge %s -> %s", BaseName(r.AdapterPath), BaseName(r.OutputDir))
}

// Metadata returns the job metadata recorded for the merge.
func (r *MergeRequest) Metadata() map[string]any {
	return map[string]any{
		"base_model_name": r.BaseModelName,
		"adapter_path":    r.AdapterPath,
		"output_dir":      r.OutputDir,
		"device":          r.Device,
	}
}

// PublishRequest uploads a model directory to the Hugging Face Hub or to S3.
type PublishRequest struct {
	SourceDir     string  `json:"source_dir"`
	RepoID        string  `json:"repo_id"`
	Token         *string `json:"token,omitempty"`
	Private       bool    `json:"private"`
	CommitMessage *string `json:"commit_message,omitempty"`
	RepoType      string  `json:"repo_type"`
	Target        string  `json:"target"`
}

// Validate validates the PublishRequest fields. An empty repo id is reported by the
// publish job itself so the failure shows up in its log.
func (r *PublishRequest) Validate() error {
	if strings.TrimSpace(r.SourceDir) == "" {
		return errors.New("source_dir is required")
	}
	switch r.Target {
	case "", PublishTargetHub, PublishTargetS3:
	default:
		return fmt.Errorf("unknown publish target %q", r.Target)
	}
	return nil
}

// ApplyDefaults fills optional fields.
func (r *PublishRequest) ApplyDefaults() {
	if r.Target == "" {
		r.Target = PublishTargetHub
	}
	if strings.TrimSpace(r.RepoType) == "" {
		r.RepoType = "model"
	}
	if r.CommitMessage == nil || strings.TrimSpace(*r.CommitMessage) == "" {
		msg := "Upload merged model"
		r.CommitMessage = &msg
	}
}

// Summary describes the upload for job listings.
func (r *PublishRequest) Summary() string {
	return fmt.Sprintf("Upload %s to %s", BaseName(r.SourceDir), r.RepoID)
}

// Metadata returns the job metadata recorded for the upload.
func (r *PublishRequest) Metadata() map[string]any {
	return map[string]any{
		"source_dir": r.SourceDir,
		"repo_id":    r.RepoID,
		"private":    r.Private,
		"target":     r.Target,
	}
}
