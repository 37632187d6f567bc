package model

// TrainParamSpec describes one tunable training parameter for clients that build forms.
type TrainParamSpec struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Default  any    `json:"default"`
	Category string `json:"category"`
	Help     string `json:"help,omitempty"`
}

var trainParamSpecs = []TrainParamSpec{
	{Name: "model_name", Label: "Base Model", Type: "string", Default: "Qwen/Qwen2.5-0.5B-Instruct", Category: "General", Help: "Model identifier or local path"},
	{Name: "dataset_path", Label: "Dataset Path", Type: "string", Default: nil, Category: "General", Help: "Path to local dataset JSON file (upload via UI to populate automatically)"},
	{Name: "dataset_name", Label: "Dataset Name", Type: "string", Default: nil, Category: "General", Help: "Optional dataset identifier"},
	{Name: "output_dir", Label: "Output Directory", Type: "string", Default: "output", Category: "General", Help: "Directory to save checkpoints"},
	{Name: "trust_remote_code", Label: "Trust Remote Code", Type: "boolean", Default: true, Category: "General"},
	{Name: "input_column", Label: "Input Column", Type: "string", Default: "input", Category: "Dataset"},
	{Name: "target_column", Label: "Target Column", Type: "string", Default: "output", Category: "Dataset"},
	{Name: "max_samples", Label: "Max Samples", Type: "number", Subtype: "int", Default: nil, Category: "Dataset"},
	{Name: "max_length", Label: "Max Sequence Length", Type: "number", Subtype: "int", Default: 2048, Category: "Dataset"},
	{Name: "max_target_length", Label: "Max Target Length", Type: "number", Subtype: "int", Default: nil, Category: "Dataset"},
	{Name: "num_train_epochs", Label: "Epochs", Type: "number", Subtype: "float", Default: 3.0, Category: "Training"},
	{Name: "per_device_train_batch_size", Label: "Per-Device Batch Size", Type: "number", Subtype: "int", Default: 4, Category: "Training"},
	{Name: "gradient_accumulation_steps", Label: "Gradient Accumulation Steps", Type: "number", Subtype: "int", Default: 4, Category: "Training"},
	{Name: "learning_rate", Label: "Learning Rate", Type: "number", Subtype: "float", Default: 2e-4, Category: "Training"},
	{Name: "weight_decay", Label: "Weight Decay", Type: "number", Subtype: "float", Default: 0.001, Category: "Training"},
	{Name: "warmup_ratio", Label: "Warmup Ratio", Type: "number", Subtype: "float", Default: 0.03, Category: "Training"},
	{Name: "warmup_steps", Label: "Warmup Steps", Type: "number", Subtype: "int", Default: 0, Category: "Training"},
	{Name: "max_grad_norm", Label: "Max Grad Norm", Type: "number", Subtype: "float", Default: 1.0, Category: "Training"},
	{Name: "lr_scheduler_type", Label: "LR Scheduler", Type: "string", Default: "cosine", Category: "Training"},
	{Name: "optim", Label: "Optimizer", Type: "string", Default: "adamw_bnb_8bit", Category: "Training"},
	{Name: "fp16", Label: "FP16", Type: "boolean", Default: false, Category: "Training"},
	{Name: "bf16", Label: "BF16", Type: "boolean", Default: false, Category: "Training"},
	{Name: "max_steps", Label: "Max Steps", Type: "number", Subtype: "int", Default: -1, Category: "Training"},
	{Name: "evaluation_strategy", Label: "Evaluation Strategy", Type: "string", Default: "no", Category: "Training"},
	{Name: "eval_steps", Label: "Evaluation Steps", Type: "number", Subtype: "int", Default: nil, Category: "Training"},
	{Name: "lora_r", Label: "LoRA Rank", Type: "number", Subtype: "int", Default: 64, Category: "LoRA"},
	{Name: "lora_alpha", Label: "LoRA Alpha", Type: "number", Subtype: "int", Default: 128, Category: "LoRA"},
	{Name: "lora_dropout", Label: "LoRA Dropout", Type: "number", Subtype: "float", Default: 0.05, Category: "LoRA"},
	{Name: "lora_target_modules", Label: "LoRA Target Modules", Type: "list", Default: nil, Category: "LoRA"},
	{Name: "modules_to_save", Label: "Modules to Save", Type: "list", Default: nil, Category: "LoRA"},
	{Name: "fan_in_fan_out", Label: "Fan In Fan Out", Type: "boolean", Default: false, Category: "LoRA"},
	{Name: "bias", Label: "Bias", Type: "string", Default: "none", Category: "LoRA"},
	{Name: "use_gradient_checkpointing", Label: "Use Gradient Checkpointing", Type: "boolean", Default: false, Category: "LoRA"},
	{Name: "seed", Label: "Seed", Type: "number", Subtype: "int", Default: 42, Category: "Misc"},
	{Name: "logging_steps", Label: "Logging Steps", Type: "number", Subtype: "int", Default: 10, Category: "Misc"},
	{Name: "save_steps", Label: "Save Steps", Type: "number", Subtype: "int", Default: 100, Category: "Misc"},
	{Name: "save_total_limit", Label: "Save Total Limit", Type: "number", Subtype: "int", Default: 3, Category: "Misc"},
	{Name: "bits", Label: "Quantization Bits", Type: "number", Subtype: "int", Default: 4, Category: "Quantization"},
	{Name: "double_quant", Label: "Double Quant", Type: "boolean", Default: true, Category: "Quantization"},
	{Name: "quant_type", Label: "Quantization Type", Type: "string", Default: "nf4", Category: "Quantization"},
	{Name: "load_in_8bit", Label: "Load in 8bit", Type: "boolean", Default: false, Category: "Quantization"},
	{Name: "load_in_4bit", Label: "Load in 4bit", Type: "boolean", Default: true, Category: "Quantization"},
	{Name: "group_size", Label: "Group Size", Type: "number", Subtype: "int", Default: 128, Category: "Quantization"},
	{Name: "use_nested_quant", Label: "Use Nested Quant", Type: "boolean", Default: false, Category: "Quantization"},
	{Name: "prompt_template_type", Label: "Prompt Template Type", Type: "string", Default: nil, Category: "Prompt"},
	{Name: "prompt_template", Label: "Prompt Template", Type: "json", Default: nil, Category: "Prompt"},
	{Name: "run_name", Label: "Run Name", Type: "string", Default: nil, Category: "Tracking"},
	{Name: "report_to", Label: "Report To", Type: "string", Default: nil, Category: "Tracking", Help: "Comma separated (e.g. none,tensorboard)"},
	{Name: "model_cache_dir", Label: "Model Cache Directory", Type: "string", Default: nil, Category: "Tracking"},
	{Name: "register_adapter", Label: "Register Adapter", Type: "boolean", Default: true, Category: "Tracking"},
	{Name: "adapter_name", Label: "Adapter Name", Type: "string", Default: nil, Category: "Tracking"},
	{Name: "adapter_description", Label: "Adapter Description", Type: "string", Default: nil, Category: "Tracking"},
	{Name: "adapter_config_path", Label: "Adapter Config Path", Type: "string", Default: nil, Category: "Tracking"},
	{Name: "save_safetensors", Label: "Save Safetensors", Type: "boolean", Default: true, Category: "Model Saving"},
	{Name: "resume_from_checkpoint", Label: "Resume From Checkpoint", Type: "string", Default: nil, Category: "Model Saving"},
	{Name: "push_to_hub", Label: "Push To Hub", Type: "boolean", Default: false, Category: "Model Saving"},
	{Name: "hub_model_id", Label: "Hub Model ID", Type: "string", Default: nil, Category: "Model Saving"},
	{Name: "hub_private_repo", Label: "Hub Private Repo", Type: "boolean", Default: true, Category: "Model Saving"},
	{Name: "hub_token", Label: "Hub Token", Type: "string", Default: nil, Category: "Model Saving"},
}

// TrainParamSpecs returns a copy of the known training parameters in display order.
func TrainParamSpecs() []TrainParamSpec {
	out := make([]TrainParamSpec, len(trainParamSpecs))
	copy(out, trainParamSpecs)
	return out
}

// TrainParamDefaults returns a fresh name to default value map.
func TrainParamDefaults() map[string]any {
	out := make(map[string]any, len(trainParamSpecs))
	for _, s := range trainParamSpecs {
		out[s.Name] = s.Default
	}
	return out
}
