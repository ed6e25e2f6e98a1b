package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/queue"
	"mediaflow/internal/store"
)

const (
	// RunningCounter is the store counter holding the number of running executions.
	RunningCounter = "running_executions"
	// SettingMaxConcurrentWorkflows is the system setting key for the admission limit.
	SettingMaxConcurrentWorkflows = "MaxConcurrentWorkflows"
)

// Outcome is the admission decision for one request.
type Outcome string

const (
	Admitted        Outcome = "Admitted"
	AdmissionQueued Outcome = "Queued"
)

// Enqueuer accepts stage work items.
type Enqueuer interface {
	Enqueue(ctx context.Context, item queue.Item, delay time.Duration) error
}

// Scheduler admits executions and promotes waiting ones.
type Scheduler struct {
	store        *store.Store
	queue        Enqueuer
	logger       *slog.Logger
	defaultLimit int
	retries      int
	backoff      time.Duration
}

// New constructs a scheduler.
func New(cfg *config.Config, st *store.Store, q Enqueuer, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		store:        st,
		queue:        q,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		defaultLimit: config.Default().Scheduler.DefaultMaxConcurrentWorkflows,
		retries:      config.Default().Scheduler.ConflictRetries,
		backoff:      20 * time.Millisecond,
	}
	if cfg != nil {
		if cfg.Scheduler.DefaultMaxConcurrentWorkflows >= config.MinMaxConcurrentWorkflows {
			s.defaultLimit = cfg.Scheduler.DefaultMaxConcurrentWorkflows
		}
		if cfg.Scheduler.ConflictRetries > 0 {
			s.retries = cfg.Scheduler.ConflictRetries
		}
		if b := cfg.ConflictBackoff(); b > 0 {
			s.backoff = b
		}
	}
	return s
}

func (s *Scheduler) backoffPolicy() retry.Backoff {
	b := retry.NewExponential(s.backoff)
	b = retry.WithCappedDuration(250*time.Millisecond, b)
	b = retry.WithJitterPercent(50, b)
	return retry.WithMaxRetries(uint64(s.retries), b)
}

// withConflictRetry runs fn, retrying whenever it reports store.ErrConflict.
// Exhausted retries surface as ErrSchedulingConflict.
func (s *Scheduler) withConflictRetry(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, s.backoffPolicy(), func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, store.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%s: %w: %w", what, ErrSchedulingConflict, err)
	}
	return err
}

// MaxConcurrentWorkflows returns the stored admission limit, or the
// configured default when none has been set.
func (s *Scheduler) MaxConcurrentWorkflows(ctx context.Context) (int, error) {
	raw, ok, err := s.store.GetSetting(ctx, SettingMaxConcurrentWorkflows)
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < config.MinMaxConcurrentWorkflows {
		logging.WarnWithContext(s.logger, "ignoring invalid stored admission limit", "admission_limit_invalid",
			logging.String("value", raw),
			logging.Int("default", s.defaultLimit),
			logging.String(logging.FieldErrorHint, "run mediaflow system set-max-concurrent"),
			logging.String(logging.FieldImpact, "the configured default limit applies"),
		)
		return s.defaultLimit, nil
	}
	return n, nil
}

// SetMaxConcurrentWorkflows stores a new admission limit. Running executions
// are unaffected; waiting executions are promoted if the limit grew.
func (s *Scheduler) SetMaxConcurrentWorkflows(ctx context.Context, n int) error {
	if n < config.MinMaxConcurrentWorkflows {
		return fmt.Errorf("MaxConcurrentWorkflows must be >= %d, got %d: %w", config.MinMaxConcurrentWorkflows, n, ErrBadConfigurationValue)
	}
	if err := s.store.PutSetting(ctx, SettingMaxConcurrentWorkflows, strconv.Itoa(n)); err != nil {
		return err
	}
	s.logger.Info("admission limit updated",
		logging.String(logging.FieldEventType, "admission_limit_updated"),
		logging.Int("limit", n),
	)
	return s.promote(ctx)
}

// Snapshot summarizes admission state.
type Snapshot struct {
	Running int64
	Limit   int
	Waiting []string
}

// Snapshot reports the running count, the limit and the waiting list.
func (s *Scheduler) Snapshot(ctx context.Context) (Snapshot, error) {
	running, err := s.store.Counter(ctx, RunningCounter)
	if err != nil {
		return Snapshot{}, err
	}
	limit, err := s.MaxConcurrentWorkflows(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	waiting, err := s.store.ListWaiting(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Running: running, Limit: limit, Waiting: waiting}, nil
}
