package operator

import (
	"encoding/json"
	"fmt"
)

type failureEvent struct {
	Error json.RawMessage `json:"Error"`
	Cause string          `json:"Cause"`
}

// HandleFailure is the error path operator. An event without Outputs came from
// a completed branch and is returned unchanged. Otherwise the required keys are
// copied into a fresh output object with Status=Error: when the failure was an
// OperatorExecutionError the failed operation's MetaData is unwrapped from
// Cause, else the reported error lands under <Name>Error.
func HandleFailure(event []byte) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(event, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	outputsRaw, ok := raw["Outputs"]
	if !ok {
		return event, nil
	}
	if err := requireKeys(raw); err != nil {
		return nil, err
	}
	var name string
	if err := json.Unmarshal(raw["Name"], &name); err != nil {
		return nil, fmt.Errorf("%w: Name: %v", ErrMalformedInput, err)
	}

	var outputs failureEvent
	if err := json.Unmarshal(outputsRaw, &outputs); err != nil {
		return nil, fmt.Errorf("%w: Outputs: %v", ErrMalformedInput, err)
	}

	metadata := failureMetadata(name, outputs)
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode failure metadata: %w", err)
	}

	formatted := map[string]json.RawMessage{
		"MetaData": metaJSON,
		"Status":   json.RawMessage(`"` + string(StatusError) + `"`),
		"Media":    json.RawMessage(`{}`),
	}
	for _, key := range requiredKeys {
		formatted[key] = raw[key]
	}
	return json.Marshal(formatted)
}

func failureMetadata(name string, outputs failureEvent) map[string]json.RawMessage {
	var errName string
	_ = json.Unmarshal(outputs.Error, &errName)
	if errName != ExecutionErrorName {
		reason := outputs.Error
		if len(reason) == 0 {
			reason = json.RawMessage(`null`)
		}
		return map[string]json.RawMessage{ErrorKey(name): reason}
	}

	var envelope errorMessageEnvelope
	var failed struct {
		MetaData map[string]json.RawMessage `json:"MetaData"`
	}
	if err := json.Unmarshal([]byte(outputs.Cause), &envelope); err == nil {
		if err := json.Unmarshal([]byte(envelope.ErrorMessage), &failed); err == nil && failed.MetaData != nil {
			return failed.MetaData
		}
	}
	cause, _ := json.Marshal(outputs.Cause)
	return map[string]json.RawMessage{ErrorKey(name): cause}
}
