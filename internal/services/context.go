package services

import "context"

type contextKey string

const (
	refIDKey contextKey = "refid"
	stageKey contextKey = "stage"
	runIDKey contextKey = "run_id"
)

// WithRefID annotates context with the asset reference id being packaged.
func WithRefID(ctx context.Context, refID string) context.Context {
	if refID == "" {
		return ctx
	}
	return context.WithValue(ctx, refIDKey, refID)
}

// RefIDFromContext extracts the asset reference id if present.
func RefIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(refIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline state name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the invocation correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
