package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/queue"
	"mediaflow/internal/stageexec"
)

// Processor advances one stage item.
type Processor interface {
	Process(ctx context.Context, item queue.Item) (stageexec.Result, error)
}

// Runner is a background loop that runs until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Manager coordinates queue consumption and the change feed tailer.
type Manager struct {
	queue     queue.Queue
	processor Processor
	tailer    Runner
	logger    *slog.Logger

	workers      int
	batch        int
	pollInterval time.Duration
	errorRetry   time.Duration
	limiter      *rate.Limiter

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastItem  *queue.Item
	processed int64
	failed    int64
}

// NewManager constructs a workflow manager. tailer may be nil.
func NewManager(cfg *config.Config, q queue.Queue, processor Processor, tailer Runner, logger *slog.Logger) *Manager {
	m := &Manager{
		queue:        q,
		processor:    processor,
		tailer:       tailer,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		workers:      1,
		batch:        1,
		pollInterval: 2 * time.Second,
		errorRetry:   10 * time.Second,
	}
	if cfg != nil {
		m.workers = max(cfg.Workflow.Workers, 1)
		m.batch = max(cfg.Workflow.ReceiveBatch, 1)
		m.pollInterval = secondsOr(cfg.Workflow.QueuePollInterval, 50*time.Millisecond)
		m.errorRetry = secondsOr(cfg.Workflow.ErrorRetryInterval, 50*time.Millisecond)
	}
	// Empty receives are paced by pollInterval; the limiter caps how fast
	// lanes hit the queue while a backlog drains.
	m.limiter = rate.NewLimiter(rate.Limit(50*m.workers), m.workers)
	return m
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
