package services

import "context"

type contextKey string

const (
	executionIDKey contextKey = "execution_id"
	stageKey       contextKey = "stage"
	operatorKey    contextKey = "operator"
	requestIDKey   contextKey = "request_id"
)

// WithExecutionID annotates context with the workflow execution identifier.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return withString(ctx, executionIDKey, id)
}

// ExecutionIDFromContext extracts the workflow execution identifier if present.
func ExecutionIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, executionIDKey)
}

// WithStage annotates context with the workflow stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithOperator annotates context with the operator being invoked.
func WithOperator(ctx context.Context, name string) context.Context {
	return withString(ctx, operatorKey, name)
}

// OperatorFromContext returns the operator name if present.
func OperatorFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, operatorKey)
}

// WithRequestID annotates context with a correlation identifier, usually the
// queue delivery id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}

// Empty values leave ctx untouched so lookups report absence.
func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
