package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Store contains configuration for the entity store database.
type Store struct {
	Path string `toml:"path"`
}

// Queue contains configuration for the execution queue backend.
type Queue struct {
	Backend           string `toml:"backend"`
	Path              string `toml:"path"`
	VisibilityTimeout int    `toml:"visibility_timeout"`
	RedisAddr         string `toml:"redis_addr"`
	RedisPassword     string `toml:"redis_password"`
	RedisDB           int    `toml:"redis_db"`
	RedisKeyPrefix    string `toml:"redis_key_prefix"`
}

// Scheduler contains admission control settings.
type Scheduler struct {
	// DefaultMaxConcurrentWorkflows applies until a value is stored with
	// `mediaflow system set-max-concurrent`.
	DefaultMaxConcurrentWorkflows int `toml:"default_max_concurrent_workflows"`
	ConflictRetries               int `toml:"conflict_retries"`
	ConflictBackoffMillis         int `toml:"conflict_backoff_ms"`
}

// AsyncOperator describes one operator that fronts an external asynchronous job.
type AsyncOperator struct {
	Name            string `toml:"name"`
	JobKind         string `toml:"job_kind"`
	OutputMediaType string `toml:"output_media_type"`
}

// SyncOperator describes one operator that completes in a single call to the
// job service.
type SyncOperator struct {
	Name            string `toml:"name"`
	Action          string `toml:"action"`
	OutputMediaType string `toml:"output_media_type"`
}

// Operators contains the operator catalog and external job service settings.
type Operators struct {
	JobServiceURL  string          `toml:"job_service_url"`
	JobServiceKey  string          `toml:"job_service_key"`
	RequestTimeout int             `toml:"request_timeout"`
	PollInterval   int             `toml:"poll_interval"`
	Async          []AsyncOperator `toml:"async"`
	Sync           []SyncOperator  `toml:"sync"`
}

// Notifications contains configuration for execution status notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RedisStream    string `toml:"redis_stream"`
	RedisAddr      string `toml:"redis_addr"`
}

// CDC contains configuration for the change feed tailer.
type CDC struct {
	Enabled      bool `toml:"enabled"`
	PollInterval int  `toml:"poll_interval"`
	BatchSize    int  `toml:"batch_size"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	ReceiveBatch       int `toml:"receive_batch"`
	Workers            int `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediaflow.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Store: entity store database location
//   - Queue: execution queue backend (sqlite or redis)
//   - Scheduler: admission control defaults and conflict retry policy
//   - Operators: external job service and the async and sync operator catalog
//   - Notifications: ntfy and redis stream targets for status changes
//   - CDC: change feed tailing cadence
//   - Workflow: stage executor polling intervals
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Queue         Queue         `toml:"queue"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Operators     Operators     `toml:"operators"`
	Notifications Notifications `toml:"notifications"`
	CDC           CDC           `toml:"cdc"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.StorePath())}
	if c.Queue.Backend == QueueBackendSQLite {
		dirs = append(dirs, filepath.Dir(c.QueuePath()))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the entity store database file.
func (c *Config) StorePath() string {
	if strings.TrimSpace(c.Store.Path) != "" {
		return c.Store.Path
	}
	return filepath.Join(c.Paths.DataDir, "mediaflow.db")
}

// QueuePath returns the sqlite execution queue database file.
func (c *Config) QueuePath() string {
	if strings.TrimSpace(c.Queue.Path) != "" {
		return c.Queue.Path
	}
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "mediaflowd.lock")
}

// VisibilityTimeout returns how long a received queue item stays hidden before redelivery.
func (c *Config) VisibilityTimeout() time.Duration {
	return time.Duration(c.Queue.VisibilityTimeout) * time.Second
}

// OperatorPollInterval returns the delay before an executing stage is polled again.
func (c *Config) OperatorPollInterval() time.Duration {
	return time.Duration(c.Operators.PollInterval) * time.Second
}

// ConflictBackoff returns the base delay between conditional-write retries.
func (c *Config) ConflictBackoff() time.Duration {
	return time.Duration(c.Scheduler.ConflictBackoffMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	encoder := toml.NewEncoder(&b)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
