package logging

import (
	"log/slog"
	"slices"
)

type fieldDefault struct {
	key   string
	value string
}

var (
	warnDefaults = []fieldDefault{
		{FieldErrorHint, "check logs for details"},
		{FieldImpact, "operation completed with warnings"},
	}
	errorDefaults = []fieldDefault{
		{FieldErrorHint, "check logs for details"},
	}
)

// HasAttrKey returns true if any attribute in attrs has the given key.
func HasAttrKey(attrs []Attr, key string) bool {
	return slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == key })
}

// WarnWithContext logs a warning carrying event_type, error_hint and impact.
// Fields the caller leaves out get a generic value.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Warn(msg, Args(withDefaults(attrs, eventType, warnDefaults)...)...)
}

// ErrorWithContext logs an error carrying event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, Args(withDefaults(attrs, eventType, errorDefaults)...)...)
}

func withDefaults(attrs []Attr, eventType string, defaults []fieldDefault) []Attr {
	out := slices.Clip(attrs)
	if !HasAttrKey(out, FieldEventType) {
		out = append(out, String(FieldEventType, eventType))
	}
	for _, d := range defaults {
		if !HasAttrKey(out, d.key) {
			out = append(out, String(d.key, d.value))
		}
	}
	return out
}
