package attrvalue

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind tags.
const (
	KindString    = "S"
	KindNumber    = "N"
	KindBool      = "BOOL"
	KindNull      = "NULL"
	KindMap       = "M"
	KindList      = "L"
	KindStringSet = "SS"
	KindNumberSet = "NS"
	KindBinarySet = "BS"
	KindBinary    = "B"
)

// ErrUnsupportedAttributeEncoding reports a leaf whose kind tag is not recognized.
var ErrUnsupportedAttributeEncoding = errors.New("unsupported attribute encoding")

// Value is one attribute in its tagged encoding.
type Value map[string]any

// Marshal encodes a JSON-shaped Go value.
func Marshal(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Value{KindNull: true}, nil
	case Value:
		return val, nil
	case string:
		return Value{KindString: val}, nil
	case bool:
		return Value{KindBool: val}, nil
	case json.Number:
		if _, err := parseNumber(string(val)); err != nil {
			return nil, err
		}
		return Value{KindNumber: string(val)}, nil
	case int:
		return Value{KindNumber: strconv.FormatInt(int64(val), 10)}, nil
	case int32:
		return Value{KindNumber: strconv.FormatInt(int64(val), 10)}, nil
	case int64:
		return Value{KindNumber: strconv.FormatInt(val, 10)}, nil
	case uint64:
		return Value{KindNumber: strconv.FormatUint(val, 10)}, nil
	case float32:
		return marshalFloat(float64(val))
	case float64:
		return marshalFloat(val)
	case []byte:
		return Value{KindBinary: base64.StdEncoding.EncodeToString(val)}, nil
	case []string:
		set := make([]any, len(val))
		for i, s := range val {
			set[i] = s
		}
		return Value{KindStringSet: set}, nil
	case [][]byte:
		set := make([]any, len(val))
		for i, b := range val {
			set[i] = base64.StdEncoding.EncodeToString(b)
		}
		return Value{KindBinarySet: set}, nil
	case map[string]any:
		encoded, err := MarshalMap(val)
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(encoded))
		for k, item := range encoded {
			m[k] = item
		}
		return Value{KindMap: m}, nil
	case []any:
		list := make([]any, len(val))
		for i, item := range val {
			encoded, err := Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = encoded
		}
		return Value{KindList: list}, nil
	default:
		return nil, fmt.Errorf("marshal attribute: unsupported Go type %T", v)
	}
}

// MarshalMap encodes every entry of a record image.
func MarshalMap(m map[string]any) (map[string]Value, error) {
	out := make(map[string]Value, len(m))
	for key, item := range m {
		encoded, err := Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		out[key] = encoded
	}
	return out, nil
}

func marshalFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("marshal attribute: non-finite number %v", f)
	}
	return Value{KindNumber: strconv.FormatFloat(f, 'f', -1, 64)}, nil
}

// Unmarshal decodes a tagged attribute into a plain value. Numbers decode to
// int64 when integral and float64 otherwise. An unrecognized kind yields the
// raw attribute unchanged together with ErrUnsupportedAttributeEncoding; the
// same applies to any such leaf nested inside M or L, while its siblings are
// still decoded.
func Unmarshal(v Value) (any, error) {
	if len(v) != 1 {
		return map[string]any(v), fmt.Errorf("%w: expected a single kind tag, got %d keys", ErrUnsupportedAttributeEncoding, len(v))
	}
	for kind, raw := range v {
		return decodeKind(v, kind, raw)
	}
	return nil, nil
}

// UnmarshalMap decodes a record image. Every attribute is decoded; failures are
// joined so the caller sees all of them.
func UnmarshalMap(m map[string]Value) (map[string]any, error) {
	out := make(map[string]any, len(m))
	var errs []error
	for _, key := range sortedKeys(m) {
		decoded, err := Unmarshal(m[key])
		if err != nil {
			errs = append(errs, fmt.Errorf("attribute %q: %w", key, err))
		}
		out[key] = decoded
	}
	return out, errors.Join(errs...)
}

func decodeKind(original Value, kind string, raw any) (any, error) {
	switch kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("S attribute holds %T", raw)
		}
		return s, nil
	case KindNumber:
		return decodeNumber(raw)
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("BOOL attribute holds %T", raw)
		}
		return b, nil
	case KindNull:
		return nil, nil
	case KindMap:
		entries, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("M attribute holds %T", raw)
		}
		out := make(map[string]any, len(entries))
		var errs []error
		for key, item := range entries {
			child, ok := asValue(item)
			if !ok {
				out[key] = item
				errs = append(errs, fmt.Errorf("%w: map key %q holds %T", ErrUnsupportedAttributeEncoding, key, item))
				continue
			}
			decoded, err := Unmarshal(child)
			if err != nil {
				errs = append(errs, fmt.Errorf("map key %q: %w", key, err))
			}
			out[key] = decoded
		}
		return out, errors.Join(errs...)
	case KindList:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("L attribute holds %T", raw)
		}
		out := make([]any, len(items))
		var errs []error
		for i, item := range items {
			child, ok := asValue(item)
			if !ok {
				out[i] = item
				errs = append(errs, fmt.Errorf("%w: list index %d holds %T", ErrUnsupportedAttributeEncoding, i, item))
				continue
			}
			decoded, err := Unmarshal(child)
			if err != nil {
				errs = append(errs, fmt.Errorf("list index %d: %w", i, err))
			}
			out[i] = decoded
		}
		return out, errors.Join(errs...)
	case KindStringSet:
		items, err := setItems(raw)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("SS member holds %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case KindNumberSet:
		items, err := setItems(raw)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			n, err := decodeNumber(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case KindBinary:
		return decodeBinary(raw)
	case KindBinarySet:
		items, err := setItems(raw)
		if err != nil {
			return nil, err
		}
		out := make([][]byte, 0, len(items))
		for _, item := range items {
			b, err := decodeBinary(item)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	default:
		return map[string]any(original), fmt.Errorf("%w: kind %q", ErrUnsupportedAttributeEncoding, kind)
	}
}

func decodeNumber(raw any) (any, error) {
	switch n := raw.(type) {
	case string:
		return parseNumber(n)
	case json.Number:
		return parseNumber(string(n))
	default:
		return nil, fmt.Errorf("N attribute holds %T", raw)
	}
}

func parseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", s, err)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return int64(f), nil
	}
	return f, nil
}

func decodeBinary(raw any) ([]byte, error) {
	switch b := raw.(type) {
	case []byte:
		return b, nil
	case string:
		decoded, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			return nil, fmt.Errorf("decode binary attribute: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("B attribute holds %T", raw)
	}
}

func setItems(raw any) ([]any, error) {
	switch items := raw.(type) {
	case []any:
		return items, nil
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("set attribute holds %T", raw)
	}
}

func asMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case map[string]Value:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	case Value:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func asValue(raw any) (Value, bool) {
	switch v := raw.(type) {
	case Value:
		return v, true
	case map[string]any:
		return Value(v), true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
