package scheduler

import (
	"context"
	"errors"
	"fmt"

	"mediaflow/internal/logging"
	"mediaflow/internal/operator"
	"mediaflow/internal/queue"
	"mediaflow/internal/services"
	"mediaflow/internal/store"
)

// Admit starts a Queued execution if a slot is free, otherwise appends it to
// the waiting list.
func (s *Scheduler) Admit(ctx context.Context, id string) (Outcome, error) {
	reserved, err := s.reserveSlot(ctx)
	if err != nil {
		return "", err
	}
	if reserved {
		if _, err := s.start(ctx, id); err != nil {
			return "", err
		}
		return Admitted, nil
	}

	if err := s.store.AppendWaiting(ctx, id); err != nil {
		return "", err
	}
	logging.WithContext(services.WithExecutionID(ctx, id), s.logger).Info("admission limit reached; execution waiting",
		logging.String(logging.FieldEventType, "admission_queued"),
	)
	// A terminal execution may have released a slot after reserveSlot
	// looked and before the append landed.
	if err := s.promote(ctx); err != nil {
		return AdmissionQueued, err
	}
	return AdmissionQueued, nil
}

// OnExecutionTerminal releases the slot held by a finished execution and
// promotes waiting executions. Repeated calls for the same execution release
// at most one slot.
func (s *Scheduler) OnExecutionTerminal(ctx context.Context, id string) error {
	exec, err := s.store.GetExecution(ctx, id)
	if err != nil {
		return err
	}
	if exec == nil {
		return fmt.Errorf("execution %s: %w", id, store.ErrNotFound)
	}
	if !exec.Status.IsTerminal() {
		return fmt.Errorf("execution %s is %s, not terminal", id, exec.Status)
	}
	released, err := s.store.ReleaseSlot(ctx, id, RunningCounter)
	if err != nil {
		return err
	}
	if released {
		logging.WithContext(services.WithExecutionID(ctx, id), s.logger).Info("admission slot released",
			logging.String(logging.FieldEventType, "slot_released"),
			logging.Status(exec.Status),
		)
	}
	return s.promote(ctx)
}

// promote starts waiting executions while slots can be reserved.
func (s *Scheduler) promote(ctx context.Context) error {
	for {
		reserved, err := s.reserveSlot(ctx)
		if err != nil {
			return err
		}
		if !reserved {
			return nil
		}
		id, ok, err := s.store.PopWaiting(ctx)
		if err != nil {
			return errors.Join(err, s.releaseReservation(ctx))
		}
		if !ok {
			return s.releaseReservation(ctx)
		}
		started, err := s.start(ctx, id)
		if err != nil {
			logging.ErrorWithContext(logging.WithContext(services.WithExecutionID(ctx, id), s.logger),
				"promotion failed", "promotion_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
			)
			continue
		}
		if started {
			logging.WithContext(services.WithExecutionID(ctx, id), s.logger).Info("waiting execution promoted",
				logging.String(logging.FieldEventType, "execution_promoted"),
			)
		}
	}
}

// reserveSlot increments the running counter if it is below the limit.
func (s *Scheduler) reserveSlot(ctx context.Context) (bool, error) {
	reserved := false
	err := s.withConflictRetry(ctx, "reserve slot", func(ctx context.Context) error {
		limit, err := s.MaxConcurrentWorkflows(ctx)
		if err != nil {
			return err
		}
		running, err := s.store.Counter(ctx, RunningCounter)
		if err != nil {
			return err
		}
		if running >= int64(limit) {
			reserved = false
			return nil
		}
		swapped, err := s.store.CompareAndSwapCounter(ctx, RunningCounter, running, running+1)
		if err != nil {
			return err
		}
		if !swapped {
			return store.ErrConflict
		}
		reserved = true
		return nil
	})
	return reserved, err
}

// releaseReservation decrements the running counter.
func (s *Scheduler) releaseReservation(ctx context.Context) error {
	return s.withConflictRetry(ctx, "release slot", func(ctx context.Context) error {
		running, err := s.store.Counter(ctx, RunningCounter)
		if err != nil {
			return err
		}
		if running <= 0 {
			logging.WarnWithContext(s.logger, "running counter already zero", "slot_underflow",
				logging.Alert("counter_underflow"),
				logging.String(logging.FieldImpact, "admission accounting skipped one release"),
			)
			return nil
		}
		swapped, err := s.store.CompareAndSwapCounter(ctx, RunningCounter, running, running-1)
		if err != nil {
			return err
		}
		if !swapped {
			return store.ErrConflict
		}
		return nil
	})
}

// start moves a Queued execution to Started using a reserved slot and
// enqueues its first stage. When the execution cannot be started the
// reservation is returned.
func (s *Scheduler) start(ctx context.Context, id string) (bool, error) {
	var exec *store.Execution
	err := s.withConflictRetry(ctx, "start execution", func(ctx context.Context) error {
		current, err := s.store.GetExecution(ctx, id)
		if err != nil {
			return err
		}
		if current == nil || current.Status != store.StatusQueued {
			exec = nil
			return nil
		}
		current.Status = store.StatusStarted
		current.SlotHeld = true
		if stage, ok := current.Stage(current.CurrentStage); ok {
			stage.Status = operator.StatusStarted
			if stage.Input.Media == nil && stage.Input.MetaData == nil {
				stage.Input = current.Globals.Clone()
			}
		}
		if err := s.store.UpdateExecution(ctx, current); err != nil {
			return err
		}
		exec = current
		return nil
	})
	if err != nil {
		return false, errors.Join(err, s.releaseReservation(ctx))
	}
	if exec == nil {
		return false, s.releaseReservation(ctx)
	}

	ctx = services.WithExecutionID(ctx, id)
	item := queue.Item{ExecutionID: id, StageName: exec.CurrentStage}
	if err := s.queue.Enqueue(ctx, item, 0); err != nil {
		s.fail(ctx, id, "Failed to enqueue first stage: "+err.Error())
		return false, err
	}
	logging.WithContext(ctx, s.logger).Info("execution started",
		logging.String(logging.FieldEventType, "execution_started"),
		logging.String(logging.FieldStage, exec.CurrentStage),
	)
	return true, nil
}

// fail marks a non-terminal execution as Error and releases its slot.
func (s *Scheduler) fail(ctx context.Context, id, message string) {
	logger := logging.WithContext(services.WithExecutionID(ctx, id), s.logger)
	err := s.withConflictRetry(ctx, "fail execution", func(ctx context.Context) error {
		exec, err := s.store.GetExecution(ctx, id)
		if err != nil {
			return err
		}
		if exec == nil || exec.Status.IsTerminal() {
			return nil
		}
		exec.Status = store.StatusError
		exec.Message = message
		exec.CurrentStage = store.EndStage
		return s.store.UpdateExecution(ctx, exec)
	})
	if err != nil {
		logging.ErrorWithContext(logger, "failed to mark execution as error", "execution_fail_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the execution with mediaflow execution show"),
		)
		return
	}
	logging.WarnWithContext(logger, "execution failed during admission", "admission_failed",
		logging.String("message", message),
		logging.String(logging.FieldImpact, "execution will not run"),
	)
	if err := s.OnExecutionTerminal(ctx, id); err != nil {
		logging.ErrorWithContext(logger, "failed to release admission slot", "slot_release_failed", logging.Error(err))
	}
}
