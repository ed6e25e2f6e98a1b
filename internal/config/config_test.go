package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediaflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "mediaflow")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if got := cfg.StorePath(); got != filepath.Join(wantData, "mediaflow.db") {
		t.Fatalf("unexpected store path: %q", got)
	}
	if cfg.Queue.Backend != config.QueueBackendSQLite {
		t.Fatalf("expected sqlite queue backend, got %q", cfg.Queue.Backend)
	}
	if cfg.Scheduler.DefaultMaxConcurrentWorkflows != 10 {
		t.Fatalf("expected default admission limit 10, got %d", cfg.Scheduler.DefaultMaxConcurrentWorkflows)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "mediaflow.toml")

	contents := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(tempDir, "data")) + `"

[scheduler]
default_max_concurrent_workflows = 3

[operators]
job_service_url = "http://jobs.example.com/"
poll_interval = 5

[[operators.async]]
name = " Polly "
job_kind = "speech"
output_media_type = "Audio"

[queue]
backend = "REDIS"
redis_addr = "127.0.0.1:6379"
`
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Scheduler.DefaultMaxConcurrentWorkflows != 3 {
		t.Fatalf("expected admission limit 3, got %d", cfg.Scheduler.DefaultMaxConcurrentWorkflows)
	}
	if cfg.Operators.JobServiceURL != "http://jobs.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Operators.JobServiceURL)
	}
	if len(cfg.Operators.Async) != 1 || cfg.Operators.Async[0].Name != "Polly" {
		t.Fatalf("unexpected async operators: %#v", cfg.Operators.Async)
	}
	if cfg.Queue.Backend != config.QueueBackendRedis {
		t.Fatalf("expected redis backend, got %q", cfg.Queue.Backend)
	}
	if cfg.OperatorPollInterval().Seconds() != 5 {
		t.Fatalf("unexpected poll interval %s", cfg.OperatorPollInterval())
	}
}

func TestEnvVarSuppliesJobServiceKey(t *testing.T) {
	t.Setenv("MEDIAFLOW_JOB_SERVICE_KEY", " env-key ")
	configPath := filepath.Join(t.TempDir(), "mediaflow.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Operators.JobServiceKey != "env-key" {
		t.Fatalf("expected job service key from env, got %q", cfg.Operators.JobServiceKey)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "mediaflow") {
		t.Fatalf("expected data dir to contain mediaflow, got %q", cfg.Paths.DataDir)
	}
	if cfg.Scheduler.DefaultMaxConcurrentWorkflows != 10 {
		t.Fatalf("sample admission limit = %d", cfg.Scheduler.DefaultMaxConcurrentWorkflows)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"admission limit below floor", func(c *config.Config) { c.Scheduler.DefaultMaxConcurrentWorkflows = 1 }},
		{"unknown queue backend", func(c *config.Config) { c.Queue.Backend = "sqs" }},
		{"redis without address", func(c *config.Config) { c.Queue.Backend = config.QueueBackendRedis }},
		{"zero poll interval", func(c *config.Config) { c.Operators.PollInterval = 0 }},
		{"async without job service", func(c *config.Config) {
			c.Operators.Async = []config.AsyncOperator{{Name: "Polly", JobKind: "speech"}}
		}},
		{"duplicate async operator", func(c *config.Config) {
			c.Operators.JobServiceURL = "http://jobs"
			c.Operators.Async = []config.AsyncOperator{{Name: "Polly", JobKind: "speech"}, {Name: "Polly", JobKind: "speech"}}
		}},
		{"sync without action", func(c *config.Config) {
			c.Operators.JobServiceURL = "http://jobs"
			c.Operators.Sync = []config.SyncOperator{{Name: "MediaInfo"}}
		}},
		{"sync name shared with async", func(c *config.Config) {
			c.Operators.JobServiceURL = "http://jobs"
			c.Operators.Async = []config.AsyncOperator{{Name: "Polly", JobKind: "speech"}}
			c.Operators.Sync = []config.SyncOperator{{Name: "Polly", Action: "speak"}}
		}},
		{"redis stream without address", func(c *config.Config) { c.Notifications.RedisStream = "events" }},
		{"zero cdc batch", func(c *config.Config) { c.CDC.BatchSize = 0 }},
		{"zero workers", func(c *config.Config) { c.Workflow.Workers = 0 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
