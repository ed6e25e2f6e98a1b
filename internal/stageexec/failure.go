package stageexec

import (
	"encoding/json"
	"fmt"

	"mediaflow/internal/operator"
	"mediaflow/internal/store"
)

// failStage runs the error path for every failed operation of stage, folds
// the resulting metadata into the execution globals and returns the
// execution failure message.
func failStage(exec *store.Execution, stage *store.StageExecution) string {
	message := ""
	for _, op := range stage.Operations {
		if op.Status != operator.StatusError {
			continue
		}
		failed := operator.OutputObject{
			Name:                op.Name,
			AssetID:             exec.AssetID,
			WorkflowExecutionID: exec.ID,
			Input:               stage.Input,
			Configuration:       op.Configuration,
			Status:              operator.StatusError,
		}
		if op.Output != nil {
			failed = op.Output.Clone()
		}
		if failed.Configuration == nil {
			failed.Configuration = map[string]any{}
		}

		if md, err := errorPathMetadata(failed); err == nil {
			exec.Globals = mergeMetadata(exec.Globals, md)
		} else {
			exec.Globals = mergeMetadata(exec.Globals, map[string]any{operator.ErrorKey(op.Name): err.Error()})
		}

		if reason, ok := failed.MetaData[operator.ErrorKey(op.Name)]; ok && reason != nil {
			message = fmt.Sprintf("Stage failed because operation %s execution failed. Message: %v", op.Name, reason)
		} else {
			message = fmt.Sprintf("Stage failed because operation %s execution failed.", op.Name)
		}
	}
	return message
}

// errorPathMetadata sends the failed output through the error path handler in
// its wire form and returns the metadata it produced.
func errorPathMetadata(failed operator.OutputObject) (map[string]any, error) {
	input, err := operator.NewFailureInput(failed, &operator.ExecutionError{Output: failed})
	if err != nil {
		return nil, err
	}
	event, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode failure input: %w", err)
	}
	handled, err := operator.HandleFailure(event)
	if err != nil {
		return nil, err
	}
	state, err := operator.Load(handled)
	if err != nil {
		return nil, err
	}
	return state.OutputObject().MetaData, nil
}
