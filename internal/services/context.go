package services

import "context"

type contextKey string

const (
	workIDKey    contextKey = "work_id"
	commandKey   contextKey = "command"
	requestIDKey contextKey = "request_id"
)

// WithWorkID annotates context with the work identifier being processed.
func WithWorkID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, workIDKey, id)
}

// WorkIDFromContext extracts the work identifier if present.
func WorkIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCommand annotates context with the dispatched command verb.
func WithCommand(ctx context.Context, command string) context.Context {
	if command == "" {
		return ctx
	}
	return context.WithValue(ctx, commandKey, command)
}

// CommandFromContext returns the command verb if present.
func CommandFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(commandKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
