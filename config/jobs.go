package config

import (
	"strings"
	"time"
)

// JobsConfig controls the in-memory job registry.
type JobsConfig struct {
	// MaxLogLines bounds each job's log buffer.
	MaxLogLines int `env:"JOBS_MAX_LOG_LINES" envDefault:"2000"`

	// WSPollInterval is how often a websocket tail re-checks a job with no new output.
	WSPollInterval time.Duration `env:"JOBS_WS_POLL_INTERVAL" envDefault:"1s"`

	// ShutdownGrace is how long running jobs get to finish before their context is cancelled.
	ShutdownGrace time.Duration `env:"JOBS_SHUTDOWN_GRACE" envDefault:"30s"`
}

// Sanitize applies guardrails to job configuration values.
func (j *JobsConfig) Sanitize() {
	if j.MaxLogLines < 1 {
		j.MaxLogLines = 2000
	}
	if j.WSPollInterval < 50*time.Millisecond {
		j.WSPollInterval = 50 * time.Millisecond
	}
	if j.ShutdownGrace < 0 {
		j.ShutdownGrace = 0
	}
}

// TasksConfig controls how training, evaluation, merge and hub publish subprocesses are launched.
type TasksConfig struct {
	PythonBin   string `env:"TASKS_PYTHON_BIN"   envDefault:"python3"`
	ProjectRoot string `env:"TASKS_PROJECT_ROOT" envDefault:"."`
	TrainScript string `env:"TASKS_TRAIN_SCRIPT" envDefault:"train.py"`
	EvalScript  string `env:"TASKS_EVAL_SCRIPT"  envDefault:"eval.py"`
	MergeScript string `env:"TASKS_MERGE_SCRIPT" envDefault:"merge_multiple_loras.py"`
	HubCLI      string `env:"TASKS_HUB_CLI"      envDefault:"huggingface-cli"`
	// HFTokenEnv lists environment variables consulted, in order, when a publish request carries no token.
	HFTokenEnv []string `env:"TASKS_HF_TOKEN_ENV" envDefault:"HF_TOKEN,HUGGINGFACEHUB_API_TOKEN"`
	// KillDelay is how long a cancelled subprocess gets before its pipes are force-closed.
	KillDelay time.Duration `env:"TASKS_KILL_DELAY" envDefault:"10s"`
	// TempDir holds scratch evaluation output; empty uses the OS default.
	TempDir string `env:"TASKS_TEMP_DIR"`

	// AdapterRegistry is the adapters.json that training runs register into, relative to ProjectRoot.
	AdapterRegistry string `env:"TASKS_ADAPTER_REGISTRY"  envDefault:"config/adapters.json"`
	// EvalResultsFile is what GET /api/evaluation/results reads when no path is given.
	EvalResultsFile string `env:"TASKS_EVAL_RESULTS_FILE" envDefault:"evaluation/latest_evaluation.json"`
}

// Sanitize applies guardrails to task configuration values.
func (t *TasksConfig) Sanitize() {
	if t.PythonBin = strings.TrimSpace(t.PythonBin); t.PythonBin == "" {
		t.PythonBin = "python3"
	}
	if t.ProjectRoot = strings.TrimSpace(t.ProjectRoot); t.ProjectRoot == "" {
		t.ProjectRoot = "."
	}
	if t.KillDelay <= 0 {
		t.KillDelay = 10 * time.Second
	}
	t.TempDir = strings.TrimSpace(t.TempDir)
	if t.AdapterRegistry = strings.TrimSpace(t.AdapterRegistry); t.AdapterRegistry == "" {
		t.AdapterRegistry = "config/adapters.json"
	}
	if t.EvalResultsFile = strings.TrimSpace(t.EvalResultsFile); t.EvalResultsFile == "" {
		t.EvalResultsFile = "evaluation/latest_evaluation.json"
	}
}

// PublishConfig configures the S3 publish target.
type PublishConfig struct {
	S3Bucket          string        `env:"PUBLISH_S3_BUCKET"`
	S3Region          string        `env:"PUBLISH_S3_REGION"            envDefault:"us-east-1"`
	S3Endpoint        string        `env:"PUBLISH_S3_ENDPOINT"`
	S3AccessKeyID     string        `env:"PUBLISH_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `env:"PUBLISH_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool          `env:"PUBLISH_S3_USE_PATH_STYLE"    envDefault:"false"`
	PartSizeMB        int64         `env:"PUBLISH_S3_PART_SIZE_MB"      envDefault:"16"`
	Concurrency       int           `env:"PUBLISH_S3_CONCURRENCY"       envDefault:"4"`
	RetryLimit        uint64        `env:"PUBLISH_S3_RETRY_LIMIT"       envDefault:"3"`
	RetryBase         time.Duration `env:"PUBLISH_S3_RETRY_BASE"        envDefault:"1s"`
}

// Sanitize applies guardrails to publish configuration values.
func (p *PublishConfig) Sanitize() {
	p.S3Bucket = strings.TrimSpace(p.S3Bucket)
	p.S3Endpoint = strings.TrimSpace(p.S3Endpoint)
	// S3 multipart uploads reject parts smaller than 5 MiB.
	if p.PartSizeMB < 5 {
		p.PartSizeMB = 5
	}
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.Concurrency > 32 {
		p.Concurrency = 32
	}
}

// S3Enabled reports whether the S3 publish target is configured.
func (p *PublishConfig) S3Enabled() bool {
	return p.S3Bucket != ""
}
