package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/operator"
	"mediaflow/internal/queue"
	"mediaflow/internal/services"
	"mediaflow/internal/store"
)

// Enqueuer accepts stage work items.
type Enqueuer interface {
	Enqueue(ctx context.Context, item queue.Item, delay time.Duration) error
}

// TerminalHook is told when an execution reaches Complete or Error.
type TerminalHook interface {
	OnExecutionTerminal(ctx context.Context, id string) error
}

// Executor processes queue items against the entity store.
type Executor struct {
	store        *store.Store
	queue        Enqueuer
	registry     *operator.Registry
	terminal     TerminalHook
	logger       *slog.Logger
	pollInterval time.Duration
	retries      uint64
	backoff      time.Duration
}

// New constructs an executor.
func New(cfg *config.Config, st *store.Store, q Enqueuer, registry *operator.Registry, terminal TerminalHook, logger *slog.Logger) *Executor {
	e := &Executor{
		store:        st,
		queue:        q,
		registry:     registry,
		terminal:     terminal,
		logger:       logging.NewComponentLogger(logger, "stageexec"),
		pollInterval: 10 * time.Second,
		retries:      8,
		backoff:      20 * time.Millisecond,
	}
	if cfg != nil {
		e.pollInterval = cfg.OperatorPollInterval()
		if cfg.Scheduler.ConflictRetries > 0 {
			e.retries = uint64(cfg.Scheduler.ConflictRetries)
		}
		if b := cfg.ConflictBackoff(); b > 0 {
			e.backoff = b
		}
	}
	if e.registry == nil {
		e.registry = operator.NewRegistry()
	}
	return e
}

func (e *Executor) update(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithJitterPercent(50, retry.WithCappedDuration(250*time.Millisecond, retry.NewExponential(e.backoff)))
	return retry.Do(ctx, retry.WithMaxRetries(e.retries, b), func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, store.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// stale reports whether item no longer describes work to do on exec.
func stale(exec *store.Execution, stageName string) bool {
	if exec.Status.IsTerminal() || exec.CurrentStage != stageName {
		return true
	}
	stage, ok := exec.Stage(stageName)
	return !ok || stage.Status.IsTerminal()
}

// Process advances the stage named by item by one step.
func (e *Executor) Process(ctx context.Context, item queue.Item) (Result, error) {
	ctx = services.WithExecutionID(ctx, item.ExecutionID)
	ctx = services.WithStage(ctx, item.StageName)
	logger := logging.WithContext(ctx, e.logger)

	exec, err := e.store.GetExecution(ctx, item.ExecutionID)
	if err != nil {
		return "", err
	}
	if exec == nil {
		logging.WarnWithContext(logger, "dropping item for unknown execution", "execution_missing",
			logging.String(logging.FieldErrorHint, "the execution was deleted or never stored"),
			logging.String(logging.FieldImpact, "queue item discarded"),
		)
		return ResultDropped, nil
	}
	if stale(exec, item.StageName) {
		logger.Debug("ignoring stale stage item",
			logging.Status(exec.Status),
			logging.String("current_stage", exec.CurrentStage),
		)
		if err := e.resume(ctx, exec, item); err != nil {
			return ResultNoop, err
		}
		return ResultNoop, nil
	}

	if exec.Status == store.StatusStarted {
		if exec, err = e.markExecuting(ctx, item); err != nil {
			return "", err
		}
		if exec == nil {
			return ResultNoop, nil
		}
		logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	}

	stage, _ := exec.Stage(item.StageName)
	ops := e.runOperations(ctx, exec, stage)

	var (
		result     Result
		collisions []Collision
		message    string
		nextStage  string
	)
	err = e.update(ctx, func(ctx context.Context) error {
		fresh, err := e.store.GetExecution(ctx, item.ExecutionID)
		if err != nil {
			return err
		}
		if fresh == nil || stale(fresh, item.StageName) {
			result = ResultNoop
			return nil
		}
		result, collisions, message = apply(fresh, item.StageName, ops)
		nextStage = fresh.CurrentStage
		return e.store.UpdateExecution(ctx, fresh)
	})
	if err != nil {
		return "", fmt.Errorf("persist stage %s: %w", item.StageName, err)
	}

	for _, c := range collisions {
		logging.WarnWithContext(logger, "stage output replaced an existing globals entry", "globals_collision",
			logging.String("section", c.Section),
			logging.String("key", c.Key),
			logging.String(logging.FieldOperator, c.Operation),
			logging.String(logging.FieldImpact, "earlier value overwritten"),
			logging.String(logging.FieldErrorHint, "give operator outputs distinct keys"),
		)
	}

	switch result {
	case ResultNoop:
		return result, nil
	case ResultExecuting:
		if err := e.queue.Enqueue(ctx, item, e.pollInterval); err != nil {
			return result, fmt.Errorf("re-enqueue %s: %w", item, err)
		}
		logger.Debug("stage still executing", logging.Duration("poll_interval", e.pollInterval))
	case ResultAdvanced:
		next := queue.Item{ExecutionID: item.ExecutionID, StageName: nextStage}
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("next_stage", next.StageName),
		)
		if err := e.queue.Enqueue(ctx, next, 0); err != nil {
			return result, fmt.Errorf("enqueue next stage %s: %w", next, err)
		}
	case ResultComplete:
		logger.Info("execution completed", logging.String(logging.FieldEventType, "execution_complete"))
	case ResultError:
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("message", message),
		)
	}

	if result.Terminal() && e.terminal != nil {
		if err := e.terminal.OnExecutionTerminal(ctx, item.ExecutionID); err != nil {
			return result, fmt.Errorf("release admission slot: %w", err)
		}
	}
	return result, nil
}

// resume finishes the follow-up work of an earlier delivery whose state
// change committed but whose next enqueue or slot release did not.
func (e *Executor) resume(ctx context.Context, exec *store.Execution, item queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	if exec.Status.IsTerminal() {
		if !exec.SlotHeld || e.terminal == nil {
			return nil
		}
		logger.Info("releasing slot held by terminal execution",
			logging.String(logging.FieldEventType, "slot_release_resumed"),
			logging.Status(exec.Status),
		)
		if err := e.terminal.OnExecutionTerminal(ctx, exec.ID); err != nil {
			return fmt.Errorf("release admission slot: %w", err)
		}
		return nil
	}
	if exec.CurrentStage == item.StageName {
		return nil
	}
	done, ok := exec.Stage(item.StageName)
	if !ok || !done.Status.Succeeded() {
		return nil
	}
	current, ok := exec.Stage(exec.CurrentStage)
	if !ok || current.Status != operator.StatusStarted || done.Next != current.Name {
		return nil
	}
	next := queue.Item{ExecutionID: exec.ID, StageName: current.Name}
	logger.Info("re-enqueueing pending stage",
		logging.String(logging.FieldEventType, "stage_resumed"),
		logging.String("next_stage", next.StageName),
	)
	if err := e.queue.Enqueue(ctx, next, 0); err != nil {
		return fmt.Errorf("enqueue next stage %s: %w", next, err)
	}
	return nil
}

func (e *Executor) markExecuting(ctx context.Context, item queue.Item) (*store.Execution, error) {
	var exec *store.Execution
	err := e.update(ctx, func(ctx context.Context) error {
		fresh, err := e.store.GetExecution(ctx, item.ExecutionID)
		if err != nil {
			return err
		}
		if fresh == nil || stale(fresh, item.StageName) {
			exec = nil
			return nil
		}
		if fresh.Status == store.StatusStarted {
			fresh.Status = store.StatusExecuting
			if err := e.store.UpdateExecution(ctx, fresh); err != nil {
				return err
			}
		}
		exec = fresh
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark execution executing: %w", err)
	}
	return exec, nil
}

// apply folds operation results into exec and decides what happens next.
func apply(exec *store.Execution, stageName string, results []store.OperationExecution) (Result, []Collision, string) {
	stage, _ := exec.Stage(stageName)
	byName := make(map[string]store.OperationExecution, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for i := range stage.Operations {
		op := &stage.Operations[i]
		if op.Status.IsTerminal() {
			continue
		}
		if r, ok := byName[op.Name]; ok {
			*op = r
		}
	}

	stage.Status = rollup(stage.Operations)
	switch stage.Status {
	case operator.StatusComplete:
		outputs := make([]operator.OutputObject, 0, len(stage.Operations))
		for _, op := range stage.Operations {
			if op.Status == operator.StatusComplete && op.Output != nil {
				outputs = append(outputs, *op.Output)
			}
		}
		var collisions []Collision
		exec.Globals, collisions = MergeGlobals(exec.Globals, outputs)
		if stage.End || stage.Next == "" {
			exec.Status = store.StatusComplete
			exec.CurrentStage = store.EndStage
			return ResultComplete, collisions, ""
		}
		next, ok := exec.Stage(stage.Next)
		if !ok {
			exec.Status = store.StatusError
			exec.CurrentStage = store.EndStage
			exec.Message = fmt.Sprintf("Stage %s names missing next stage %s", stage.Name, stage.Next)
			return ResultError, collisions, exec.Message
		}
		next.Input = exec.Globals.Clone()
		next.Status = operator.StatusStarted
		exec.CurrentStage = next.Name
		return ResultAdvanced, collisions, ""
	case operator.StatusError:
		exec.Message = failStage(exec, stage)
		exec.Status = store.StatusError
		exec.CurrentStage = store.EndStage
		return ResultError, nil, exec.Message
	default:
		return ResultExecuting, nil, ""
	}
}

func rollup(ops []store.OperationExecution) operator.Status {
	done := true
	for _, op := range ops {
		switch {
		case op.Status == operator.StatusError:
			return operator.StatusError
		case !op.Status.Succeeded():
			done = false
		}
	}
	if done {
		return operator.StatusComplete
	}
	return operator.StatusExecuting
}
