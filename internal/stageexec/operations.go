package stageexec

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mediaflow/internal/logging"
	"mediaflow/internal/operator"
	"mediaflow/internal/services"
	"mediaflow/internal/store"
)

// MediaTypeMetadataOnly marks an operation that runs without input media.
const MediaTypeMetadataOnly = "MetadataOnly"

// skipReason returns why an operation should not run, or "" when it should.
func skipReason(op store.OperationExecution, input operator.Globals) string {
	if enabled, ok := op.Configuration["Enabled"].(bool); ok && !enabled {
		return "disabled"
	}
	mediaType, _ := op.Configuration["MediaType"].(string)
	if mediaType == "" || mediaType == MediaTypeMetadataOnly {
		return ""
	}
	if _, ok := input.Media[mediaType]; !ok {
		return "no " + mediaType + " media in stage input"
	}
	return ""
}

// runOperations invokes every unfinished operation of stage once, in
// parallel, and returns the resulting operation records in stage order.
// Finished operations are returned as is.
func (e *Executor) runOperations(ctx context.Context, exec *store.Execution, stage *store.StageExecution) []store.OperationExecution {
	results := make([]store.OperationExecution, len(stage.Operations))
	var g errgroup.Group
	for i, op := range stage.Operations {
		if op.Status.IsTerminal() {
			results[i] = op
			continue
		}
		g.Go(func() error {
			results[i] = e.runOperation(ctx, exec, stage, op)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) runOperation(ctx context.Context, exec *store.Execution, stage *store.StageExecution, op store.OperationExecution) store.OperationExecution {
	opCtx := services.WithOperator(ctx, op.Name)
	logger := logging.WithContext(opCtx, e.logger)

	if reason := skipReason(op, stage.Input); reason != "" {
		op.Status = operator.StatusSkipped
		logger.Info("operation skipped",
			logging.String(logging.FieldEventType, "operation_skipped"),
			logging.String("reason", reason),
		)
		return op
	}

	out := e.invoke(opCtx, exec, stage, op)
	op.Output = &out
	op.Status = out.Status
	if out.Status == operator.StatusError {
		logging.WarnWithContext(logger, "operation failed", "operation_failed",
			logging.Any("reason", out.MetaData[operator.ErrorKey(op.Name)]),
			logging.String(logging.FieldImpact, "stage will fail"),
			logging.String(logging.FieldErrorHint, "check the external job service"),
		)
	}
	return op
}

// invoke calls Start or Poll and always returns an output object with a
// status the roll-up understands.
func (e *Executor) invoke(ctx context.Context, exec *store.Execution, stage *store.StageExecution, op store.OperationExecution) operator.OutputObject {
	base := operator.OutputObject{
		Name:                op.Name,
		AssetID:             exec.AssetID,
		WorkflowExecutionID: exec.ID,
		Input:               stage.Input.Clone(),
		Configuration:       op.Configuration,
		Status:              operator.StatusNotStarted,
	}
	if op.Output != nil {
		base = op.Output.Clone()
		base.Input = stage.Input.Clone()
		base.Configuration = op.Configuration
	}
	if base.Configuration == nil {
		base.Configuration = map[string]any{}
	}

	state, err := operator.NewState(base)
	if err != nil {
		return failedOutput(base, fmt.Errorf("%w: %v", operator.ErrExternalJob, err))
	}
	impl, ok := e.registry.Lookup(op.Name)
	if !ok {
		return state.Fail(services.Wrap(services.ErrConfiguration, stage.Name, op.Name, "no operator registered", nil)).Output
	}

	var out operator.OutputObject
	if op.Status == operator.StatusExecuting {
		out, err = impl.Poll(ctx, state)
	} else {
		out, err = impl.Start(ctx, state)
	}
	if err != nil {
		if failed, ok := operator.AsExecutionError(err); ok {
			return failed
		}
		return state.Fail(fmt.Errorf("%w: %v", operator.ErrExternalJob, err)).Output
	}
	switch {
	case out.Status.IsTerminal(), out.Status == operator.StatusExecuting:
	default:
		out.Status = operator.StatusExecuting
	}
	return out
}

func failedOutput(base operator.OutputObject, err error) operator.OutputObject {
	out := base.Clone()
	out.Status = operator.StatusError
	out.MetaData[operator.ErrorKey(out.Name)] = err.Error()
	return out
}
