package operator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedInput reports an Output Object missing required fields.
var ErrMalformedInput = errors.New("malformed operator input")

var requiredKeys = []string{"Name", "AssetId", "WorkflowExecutionId", "Input", "Configuration"}

// State wraps the Output Object an operator is working on.
type State struct {
	out OutputObject
}

// Load parses an Output Object from its JSON wire form.
func Load(event []byte) (*State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(event, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := requireKeys(raw); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(event))
	dec.UseNumber()
	var out OutputObject
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return NewState(out)
}

// NewState validates an in-memory Output Object and wraps it.
func NewState(out OutputObject) (*State, error) {
	var missing []string
	if strings.TrimSpace(out.Name) == "" {
		missing = append(missing, "Name")
	}
	if strings.TrimSpace(out.AssetID) == "" {
		missing = append(missing, "AssetId")
	}
	if strings.TrimSpace(out.WorkflowExecutionID) == "" {
		missing = append(missing, "WorkflowExecutionId")
	}
	if out.Configuration == nil {
		missing = append(missing, "Configuration")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedInput, strings.Join(missing, ", "))
	}

	normalized, err := NormalizeMetadata(out.MetaData)
	if err != nil {
		return nil, err
	}
	inputMeta, err := NormalizeMetadata(out.Input.MetaData)
	if err != nil {
		return nil, err
	}
	out = out.Clone()
	out.MetaData = normalized
	out.Input.MetaData = inputMeta
	if out.Status == "" {
		out.Status = StatusNotStarted
	}
	return &State{out: out}, nil
}

func requireKeys(raw map[string]json.RawMessage) error {
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedInput, strings.Join(missing, ", "))
	}
	return nil
}

// Name returns the operator name the state belongs to.
func (s *State) Name() string { return s.out.Name }

// Status returns the current status.
func (s *State) Status() Status { return s.out.Status }

// Input returns the stage input globals.
func (s *State) Input() Globals { return s.out.Input }

// Configuration returns the operation configuration.
func (s *State) Configuration() map[string]any { return s.out.Configuration }

// Metadata returns a metadata value by key.
func (s *State) Metadata(key string) (any, bool) {
	v, ok := s.out.MetaData[key]
	return v, ok
}

// MetadataString returns a metadata value when it is a non-empty string.
func (s *State) MetadataString(key string) (string, bool) {
	v, ok := s.out.MetaData[key].(string)
	return v, ok && v != ""
}

// SetStatus sets the status without checking transition legality.
func (s *State) SetStatus(status Status) {
	s.out.Status = status
}

// AddMetadata stores a value; a later write for the same key wins.
func (s *State) AddMetadata(key string, value any) {
	if s.out.MetaData == nil {
		s.out.MetaData = map[string]any{}
	}
	s.out.MetaData[key] = value
}

// AddMetadataMap merges every entry of values.
func (s *State) AddMetadataMap(values map[string]any) {
	for k, v := range values {
		s.AddMetadata(k, v)
	}
}

// AddMediaObject records an output media reference under a logical media type.
func (s *State) AddMediaObject(mediaType, bucket, key string) {
	if s.out.Media == nil {
		s.out.Media = map[string]MediaObject{}
	}
	s.out.Media[mediaType] = MediaObject{S3Bucket: bucket, S3Key: key}
}

// OutputObject returns a copy of the current state in wire form.
func (s *State) OutputObject() OutputObject {
	return s.out.Clone()
}

// Fail marks the state as failed, records the reason under <Name>Error and
// returns the error carrying the output.
func (s *State) Fail(err error) *ExecutionError {
	if err == nil {
		err = errors.New("operator failed")
	}
	s.SetStatus(StatusError)
	s.AddMetadata(ErrorKey(s.out.Name), err.Error())
	return &ExecutionError{Output: s.OutputObject(), Err: err}
}

// ErrorKey returns the metadata key holding an operator's failure reason.
func ErrorKey(name string) string { return name + "Error" }

// NormalizeMetadata checks that every value is a string, number, boolean, null,
// nested mapping or sequence, converting json.Number into int64 or float64.
func NormalizeMetadata(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		normalized, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata %q: %v", ErrMalformedInput, k, err)
		}
		out[k] = normalized
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		if math.IsInf(f, 0) {
			return nil, fmt.Errorf("number %s out of range", val)
		}
		return f, nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			n, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			n, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
