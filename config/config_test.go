package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - reaper",
			input:    "reaper",
			expected: map[ServiceMode]bool{ServiceModeReaper: true},
		},
		{
			name:  "services with spaces",
			input: " http , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeReaper: true,
			},
		},
		{
			name:     "duplicate services",
			input:    "http,http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name           string
		services       string
		expectedHTTP   bool
		expectedReaper bool
	}{
		{name: "default - http only", services: "http", expectedHTTP: true},
		{name: "reaper only", services: "reaper", expectedReaper: true},
		{name: "both", services: "http,reaper", expectedHTTP: true, expectedReaper: true},
		{name: "invalid configuration", services: "invalid-service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, cfg.IsHTTPServerEnabled())
			}
			if cfg.IsReaperEnabled() != tt.expectedReaper {
				t.Errorf("IsReaperEnabled(): expected %v, got %v", tt.expectedReaper, cfg.IsReaperEnabled())
			}
		})
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	expected := []ServiceMode{ServiceModeHTTP, ServiceModeReaper}
	if !reflect.DeepEqual(modes, expected) {
		t.Errorf("expected %v, got %v", expected, modes)
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.HTTP.Addr != ":8000" {
		t.Errorf("HTTP.Addr: expected :8000, got %q", cfg.HTTP.Addr)
	}
	if cfg.Jobs.MaxLogLines != 2000 {
		t.Errorf("Jobs.MaxLogLines: expected 2000, got %d", cfg.Jobs.MaxLogLines)
	}
	if cfg.Tasks.TrainScript != "train.py" || cfg.Tasks.MergeScript != "merge_multiple_loras.py" {
		t.Errorf("unexpected task scripts: %+v", cfg.Tasks)
	}
	if cfg.Tasks.AdapterRegistry != "config/adapters.json" || cfg.Tasks.EvalResultsFile != "evaluation/latest_evaluation.json" {
		t.Errorf("unexpected artifact paths: %q %q", cfg.Tasks.AdapterRegistry, cfg.Tasks.EvalResultsFile)
	}
	if !reflect.DeepEqual(cfg.Tasks.HFTokenEnv, []string{"HF_TOKEN", "HUGGINGFACEHUB_API_TOKEN"}) {
		t.Errorf("Tasks.HFTokenEnv: got %v", cfg.Tasks.HFTokenEnv)
	}
	if cfg.History.Backend != HistoryBackendNone || cfg.History.Enabled() {
		t.Errorf("history should default to disabled, got %q", cfg.History.Backend)
	}
	if cfg.Publish.S3Enabled() {
		t.Errorf("S3 publishing should be disabled without a bucket")
	}
	if cfg.Postgres.User != "qlora" || cfg.Postgres.Port != 5432 {
		t.Errorf("unexpected postgres defaults: %+v", cfg.Postgres)
	}
	if cfg.Reaper.CompletedMaxAge != 168*time.Hour {
		t.Errorf("Reaper.CompletedMaxAge: got %v", cfg.Reaper.CompletedMaxAge)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %q", cfg.LogLevel)
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("SERVICES", "http,reaper")
	t.Setenv("HISTORY_BACKEND", "redis")
	t.Setenv("PUBLISH_S3_BUCKET", " models ")
	t.Setenv("PUBLISH_S3_PART_SIZE_MB", "1")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_URI", "redis.internal:6379")
	t.Setenv("HTTP_CORS_ORIGINS", "https://ui.example.com/, ,*")
	t.Setenv("OBSERVABILITY_NOTIFICATIONS_ENABLED", "true")
	t.Setenv("OBSERVABILITY_NOTIFICATIONS_SLACK_ENABLED", "true")
	t.Setenv("OBSERVABILITY_NOTIFICATIONS_SLACK_WEBHOOK_URL", "https://hooks.slack.test/abc")
	t.Setenv("OBSERVABILITY_NOTIFICATIONS_PAGERDUTY_ENABLED", "true")
	t.Setenv("OBSERVABILITY_NOTIFICATIONS_JOB_KINDS", " Train ,publish")
	t.Setenv("LOG_LEVEL", " DEBUG ")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if !cfg.IsReaperEnabled() || !cfg.IsHTTPServerEnabled() {
		t.Errorf("expected http and reaper enabled")
	}
	if !cfg.NeedsRedis() || cfg.NeedsPostgres() {
		t.Errorf("expected redis history backend, got %q", cfg.History.Backend)
	}
	if cfg.Publish.S3Bucket != "models" || cfg.Publish.PartSizeMB != 5 {
		t.Errorf("unexpected publish config: %+v", cfg.Publish)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Redis.URI != "redis.internal:6379" {
		t.Errorf("prefixed env not applied: %+v %+v", cfg.Postgres, cfg.Redis)
	}
	if !reflect.DeepEqual(cfg.HTTP.CORSOrigins, []string{"https://ui.example.com", "*"}) {
		t.Errorf("HTTP.CORSOrigins: got %v", cfg.HTTP.CORSOrigins)
	}

	n := cfg.Observability.Notifications
	if !n.Slack.Enabled || n.Slack.WebhookURL != "https://hooks.slack.test/abc" {
		t.Errorf("slack should be enabled: %+v", n.Slack)
	}
	if n.PagerDuty.Enabled {
		t.Errorf("pagerduty without a routing key should be disabled")
	}
	if !reflect.DeepEqual(n.JobKinds, []string{"train", "publish"}) {
		t.Errorf("JobKinds: got %v", n.JobKinds)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q", cfg.LogLevel)
	}
}

func TestHistoryConfig_SanitizeUnknownBackend(t *testing.T) {
	h := HistoryConfig{Backend: "mongo", LogTailLines: -1}
	h.Sanitize()
	if h.Backend != HistoryBackendNone || h.LogTailLines != 0 {
		t.Errorf("unexpected sanitized history config: %+v", h)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	r := ReaperConfig{}
	r.Sanitize()
	if r.Interval != 10*time.Second || r.CompletedMaxAge != time.Minute || r.HistoryMaxAge != 24*time.Hour {
		t.Errorf("unexpected sanitized reaper config: %+v", r)
	}
}

func TestDetectDevMode(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Errorf("expected dev mode from NODE_ENV")
	}
}
