package operator_test

import (
	"encoding/json"
	"errors"
	"testing"

	"mediaflow/internal/operator"
)

func failureEvent() map[string]any {
	return map[string]any{
		"Outputs":             map[string]any{"Error": "test_error"},
		"Name":                "testName",
		"AssetId":             "testAssetId",
		"WorkflowExecutionId": "testWorkflowExecutionId",
		"Input":               "testInput",
		"Configuration":       "testConfiguration",
	}
}

func TestHandleFailureWithoutOutputsReturnsEvent(t *testing.T) {
	event := []byte(`{"test":"input"}`)
	got, err := operator.HandleFailure(event)
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}
	if string(got) != string(event) {
		t.Fatalf("expected event unchanged, got %s", got)
	}
}

func TestHandleFailureRequiresKeys(t *testing.T) {
	for _, key := range []string{"Name", "AssetId", "WorkflowExecutionId", "Input", "Configuration"} {
		event := failureEvent()
		delete(event, key)
		if _, err := operator.HandleFailure(mustJSON(t, event)); !errors.Is(err, operator.ErrMalformedInput) {
			t.Fatalf("missing %s: expected ErrMalformedInput, got %v", key, err)
		}
	}
}

func TestHandleFailureRecordsError(t *testing.T) {
	got, err := operator.HandleFailure(mustJSON(t, failureEvent()))
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(got, &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out["Status"] != "Error" {
		t.Fatalf("expected Error status, got %#v", out["Status"])
	}
	meta, _ := out["MetaData"].(map[string]any)
	if meta["testNameError"] != "test_error" {
		t.Fatalf("expected testNameError metadata, got %#v", out["MetaData"])
	}
	if out["Input"] != "testInput" {
		t.Fatalf("expected Input copied through, got %#v", out["Input"])
	}
}

func TestHandleFailureUnwrapsExecutionError(t *testing.T) {
	state := newState(t)
	state.AddMetadata("TranscribeJobId", "job-3")
	failErr := state.Fail(errors.New("job failed"))

	in, err := operator.NewFailureInput(failErr.Output, failErr)
	if err != nil {
		t.Fatalf("NewFailureInput failed: %v", err)
	}
	if in.Outputs == nil || in.Outputs.Error != operator.ExecutionErrorName {
		t.Fatalf("expected doubly wrapped payload, got %#v", in.Outputs)
	}

	got, err := operator.HandleFailure(mustJSON(t, in))
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}
	loaded, err := operator.Load(got)
	if err != nil {
		t.Fatalf("Load of failure output failed: %v", err)
	}
	out := loaded.OutputObject()
	if out.Status != operator.StatusError {
		t.Fatalf("expected Error status, got %q", out.Status)
	}
	if out.MetaData["TranscribeJobId"] != "job-3" || out.MetaData["TranscribeError"] != "job failed" {
		t.Fatalf("expected unwrapped metadata, got %#v", out.MetaData)
	}
}
