package operator

import (
	"encoding/json"
	"errors"
	"fmt"

	"mediaflow/internal/services"
)

// ExecutionErrorName is the wire name of the operator failure signal.
const ExecutionErrorName = "OperatorExecutionError"

// ErrExternalJob reports that a wrapped analysis job failed or could not be reached.
var ErrExternalJob = fmt.Errorf("%w: external job", services.ErrExternalTool)

// ExecutionError is the only way an operator reports a fatal failure. Output
// is the complete output object with Status forced to Error.
type ExecutionError struct {
	Output OutputObject
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ExecutionErrorName, e.Output.Name)
	}
	return fmt.Sprintf("%s: %s: %v", ExecutionErrorName, e.Output.Name, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// AsExecutionError extracts the carried output when err is an *ExecutionError.
func AsExecutionError(err error) (OutputObject, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		out := execErr.Output.Clone()
		out.Status = StatusError
		return out, true
	}
	return OutputObject{}, false
}

// FailureOutputs describes why an operation failed as seen by the error path.
type FailureOutputs struct {
	Error string `json:"Error"`
	Cause string `json:"Cause,omitempty"`
}

// FailureInput is the payload handed to the error path operator.
type FailureInput struct {
	Name                string          `json:"Name"`
	AssetID             string          `json:"AssetId"`
	WorkflowExecutionID string          `json:"WorkflowExecutionId"`
	Input               Globals         `json:"Input"`
	Configuration       map[string]any  `json:"Configuration"`
	Outputs             *FailureOutputs `json:"Outputs,omitempty"`
}

type errorMessageEnvelope struct {
	ErrorMessage string `json:"errorMessage"`
}

// NewFailureInput wraps a failed operation output the way the error path
// expects it: the output object is serialized into errorMessage, and that
// envelope is serialized again into Cause.
func NewFailureInput(failed OutputObject, cause error) (FailureInput, error) {
	in := FailureInput{
		Name:                failed.Name,
		AssetID:             failed.AssetID,
		WorkflowExecutionID: failed.WorkflowExecutionID,
		Input:               failed.Input,
		Configuration:       failed.Configuration,
	}
	var execErr *ExecutionError
	if cause != nil && !errors.As(cause, &execErr) {
		in.Outputs = &FailureOutputs{Error: cause.Error()}
		return in, nil
	}
	inner, err := json.Marshal(failed)
	if err != nil {
		return FailureInput{}, fmt.Errorf("encode failed output: %w", err)
	}
	envelope, err := json.Marshal(errorMessageEnvelope{ErrorMessage: string(inner)})
	if err != nil {
		return FailureInput{}, fmt.Errorf("encode failure cause: %w", err)
	}
	in.Outputs = &FailureOutputs{Error: ExecutionErrorName, Cause: string(envelope)}
	return in, nil
}
