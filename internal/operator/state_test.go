package operator_test

import (
	"encoding/json"
	"errors"
	"testing"

	"mediaflow/internal/operator"
)

func validEvent() map[string]any {
	return map[string]any{
		"Name":                "Transcribe",
		"AssetId":             "asset-1",
		"WorkflowExecutionId": "exec-1",
		"Input": map[string]any{
			"Media":    map[string]any{"Audio": map[string]any{"S3Bucket": "b", "S3Key": "k.mp3"}},
			"MetaData": map[string]any{},
		},
		"Configuration": map[string]any{"MediaType": "Audio", "Enabled": true},
		"Status":        "Not Started",
		"MetaData":      map[string]any{"Count": 3},
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestLoadRejectsMissingRequiredKeys(t *testing.T) {
	for _, key := range []string{"Name", "AssetId", "WorkflowExecutionId", "Input", "Configuration"} {
		t.Run(key, func(t *testing.T) {
			event := validEvent()
			delete(event, key)
			state, err := operator.Load(mustJSON(t, event))
			if !errors.Is(err, operator.ErrMalformedInput) {
				t.Fatalf("expected ErrMalformedInput, got %v", err)
			}
			if state != nil {
				t.Fatalf("expected no state, got %#v", state)
			}
		})
	}
}

func TestLoadNormalizesMetadataNumbers(t *testing.T) {
	state, err := operator.Load(mustJSON(t, validEvent()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, _ := state.Metadata("Count"); v != int64(3) {
		t.Fatalf("expected int64 metadata, got %#v", v)
	}
	if state.Input().Media["Audio"].S3Key != "k.mp3" {
		t.Fatalf("unexpected input media: %#v", state.Input())
	}
}

func TestStateMutationsRoundTrip(t *testing.T) {
	state, err := operator.Load(mustJSON(t, validEvent()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	state.SetStatus(operator.StatusExecuting)
	state.AddMetadata("Key", "first")
	state.AddMetadata("Key", "second")
	state.AddMediaObject("Text", "bucket", "out.json")

	out := state.OutputObject()
	if out.Status != operator.StatusExecuting {
		t.Fatalf("unexpected status %q", out.Status)
	}
	if out.MetaData["Key"] != "second" {
		t.Fatalf("expected last write to win, got %#v", out.MetaData["Key"])
	}
	if out.Media["Text"] != (operator.MediaObject{S3Bucket: "bucket", S3Key: "out.json"}) {
		t.Fatalf("unexpected media: %#v", out.Media)
	}

	out.MetaData["Key"] = "mutated"
	if v, _ := state.Metadata("Key"); v != "second" {
		t.Fatal("expected OutputObject to return a copy")
	}
}

func TestSetStatusDoesNotValidateTransitions(t *testing.T) {
	state, err := operator.Load(mustJSON(t, validEvent()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	state.SetStatus(operator.StatusComplete)
	state.SetStatus(operator.StatusNotStarted)
	if state.Status() != operator.StatusNotStarted {
		t.Fatalf("expected loose status contract, got %q", state.Status())
	}
}

func TestFailCarriesFullOutput(t *testing.T) {
	state, err := operator.Load(mustJSON(t, validEvent()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	state.AddMetadata("TranscribeJobId", "job-7")
	failErr := state.Fail(errors.New("boom"))

	var wrapped error = failErr
	out, ok := operator.AsExecutionError(wrapped)
	if !ok {
		t.Fatal("expected ExecutionError")
	}
	if out.Status != operator.StatusError {
		t.Fatalf("expected Error status, got %q", out.Status)
	}
	if out.MetaData["TranscribeError"] != "boom" || out.MetaData["TranscribeJobId"] != "job-7" {
		t.Fatalf("expected partial output preserved, got %#v", out.MetaData)
	}
}

func TestNewStateRejectsUnsupportedMetadata(t *testing.T) {
	_, err := operator.NewState(operator.OutputObject{
		Name:                "X",
		AssetID:             "a",
		WorkflowExecutionID: "e",
		Configuration:       map[string]any{},
		MetaData:            map[string]any{"bad": make(chan int)},
	})
	if !errors.Is(err, operator.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := operator.NewRegistry()
	op := operator.AsyncJob{Kind: "transcribe"}
	if err := reg.Register("Transcribe", op); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register("Transcribe", op); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if _, ok := reg.Lookup("Transcribe"); !ok {
		t.Fatal("expected lookup to succeed")
	}
	if _, ok := reg.Lookup("Missing"); ok {
		t.Fatal("expected lookup of unknown operator to fail")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "Transcribe" {
		t.Fatalf("unexpected names %v", names)
	}
}
