package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mediaflow/internal/cdc"
	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
	"mediaflow/internal/operators/catalog"
	"mediaflow/internal/queue"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/stageexec"
	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	queue     queue.Queue
	scheduler *scheduler.Scheduler
	notifier  *notifications.Fanout
	workflow  *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	Admission    scheduler.Snapshot
	Executions   map[store.Status]int
	StorePath    string
	QueueBackend string
	LockFilePath string
	Publishers   int
}

// New opens the store and queue and builds every processing component.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	registry, err := catalog.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build operator catalog: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	q, err := queue.Open(cfg)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open queue: %w", err)
	}

	sched := scheduler.New(cfg, st, q, logger)
	executor := stageexec.New(cfg, st, q, registry, sched, logger)
	notifier := notifications.New(cfg)

	var tailer workflow.Runner
	if cfg.CDC.Enabled {
		tailer = cdc.NewTailer(cfg, st, cdc.NewPipeline(notifier, logger), logger)
	}

	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		queue:     q,
		scheduler: sched,
		notifier:  notifier,
		workflow:  workflow.NewManager(cfg, q, executor, tailer, logger),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}, nil
}

// Scheduler exposes the admission scheduler for in-process callers.
func (d *Daemon) Scheduler() *scheduler.Scheduler { return d.scheduler }

// Start launches the workflow manager and acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("mediaflow daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("queue_backend", d.cfg.Queue.Backend),
		logging.Int("publishers", d.notifier.Len()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance running"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("mediaflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return errors.Join(d.notifier.Close(), d.queue.Close(), d.store.Close())
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	status := Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(),
		StorePath:    d.store.Path(),
		QueueBackend: d.cfg.Queue.Backend,
		LockFilePath: d.lockPath,
		Publishers:   d.notifier.Len(),
	}
	snapshot, err := d.scheduler.Snapshot(ctx)
	if err != nil {
		return status, fmt.Errorf("admission snapshot: %w", err)
	}
	status.Admission = snapshot
	counts, err := d.store.CountExecutions(ctx)
	if err != nil {
		return status, fmt.Errorf("count executions: %w", err)
	}
	status.Executions = counts
	return status, nil
}

// TestNotification publishes a synthetic status message through every configured publisher.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.notifier.Len() == 0 {
		return false, "no notification publishers configured", nil
	}
	msg := notifications.Message{
		EventTimestamp:      time.Now().UTC(),
		WorkflowExecutionID: "test",
		AssetID:             "test",
		Status:              "Test",
	}
	if err := d.notifier.Publish(ctx, msg); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
