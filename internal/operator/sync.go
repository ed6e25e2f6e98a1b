package operator

import (
	"context"
	"fmt"
)

// CallResult is the reply of a request/response call on the job service.
type CallResult struct {
	ResultBucket string         `json:"resultBucket,omitempty"`
	ResultKey    string         `json:"resultKey,omitempty"`
	MetaData     map[string]any `json:"metaData,omitempty"`
	ErrorReason  string         `json:"errorReason,omitempty"`
}

// Caller runs short actions that answer within a single request.
type Caller interface {
	Call(ctx context.Context, action string, input JobInput) (CallResult, error)
}

// SyncCall returns an operator that completes in one call to action. Result
// metadata is merged into the output; a result location becomes a media
// object under outputMediaType.
func SyncCall(client Caller, action, outputMediaType string) Func {
	return func(ctx context.Context, state *State) (OutputObject, error) {
		if state.Status().IsTerminal() {
			return state.OutputObject(), nil
		}
		input := state.Input()
		result, err := client.Call(ctx, action, JobInput{
			Operator:            state.Name(),
			AssetID:             state.out.AssetID,
			WorkflowExecutionID: state.out.WorkflowExecutionID,
			Media:               input.Media,
			Configuration:       state.Configuration(),
		})
		if err != nil {
			return OutputObject{}, state.Fail(fmt.Errorf("%w: call %s: %v", ErrExternalJob, action, err))
		}
		if result.ErrorReason != "" {
			return OutputObject{}, state.Fail(fmt.Errorf("%w: %s failed: %s", ErrExternalJob, action, result.ErrorReason))
		}
		meta, err := NormalizeMetadata(result.MetaData)
		if err != nil {
			return OutputObject{}, state.Fail(fmt.Errorf("%w: %s returned %v", ErrExternalJob, action, err))
		}
		state.AddMetadataMap(meta)
		if result.ResultKey != "" {
			mediaType := outputMediaType
			if mediaType == "" {
				mediaType = "Text"
			}
			state.AddMediaObject(mediaType, result.ResultBucket, result.ResultKey)
		}
		state.SetStatus(StatusComplete)
		return state.OutputObject(), nil
	}
}
