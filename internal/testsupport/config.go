package testsupport

import (
	"path/filepath"
	"testing"

	"mediaflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Operators.PollInterval = 1
	cfgVal.Scheduler.ConflictBackoffMillis = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxConcurrent overrides the default admission limit.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.DefaultMaxConcurrentWorkflows = n
	}
}

// WithAsyncOperator adds an async operator entry and a job service URL.
func WithAsyncOperator(name, jobKind, mediaType string) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Operators.JobServiceURL == "" {
			b.cfg.Operators.JobServiceURL = "http://127.0.0.1:0"
		}
		b.cfg.Operators.Async = append(b.cfg.Operators.Async, config.AsyncOperator{
			Name:            name,
			JobKind:         jobKind,
			OutputMediaType: mediaType,
		})
	}
}

// WithSyncOperator adds a sync operator entry and a job service URL.
func WithSyncOperator(name, action, mediaType string) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Operators.JobServiceURL == "" {
			b.cfg.Operators.JobServiceURL = "http://127.0.0.1:0"
		}
		b.cfg.Operators.Sync = append(b.cfg.Operators.Sync, config.SyncOperator{
			Name:            name,
			Action:          action,
			OutputMediaType: mediaType,
		})
	}
}

// WithJobService points operators at the job service at url.
func WithJobService(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Operators.JobServiceURL = url
	}
}

// WithRedisQueue switches the queue backend to redis at addr.
func WithRedisQueue(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Backend = config.QueueBackendRedis
		b.cfg.Queue.RedisAddr = addr
		b.cfg.Queue.RedisKeyPrefix = "mediaflow-test:" + filepath.Base(b.baseDir) + ":"
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithConflictRetries raises the scheduler compare-and-swap retry budget.
func WithConflictRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.ConflictRetries = n
	}
}
