package logging

import (
	"context"
	"log/slog"
	"strings"
)

type contextKey int

const (
	queueKey contextKey = iota
	entryIDKey
	requestIDKey
)

// WithQueue annotates ctx with the queue kind being processed.
func WithQueue(ctx context.Context, queue string) context.Context {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return ctx
	}
	return context.WithValue(ctx, queueKey, queue)
}

// WithEntryID annotates ctx with the entry currently being processed.
func WithEntryID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, entryIDKey, id)
}

// WithRequestID annotates ctx with a correlation identifier for API requests.
func WithRequestID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier stored in ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, requestIDKey)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if queue, ok := stringFromContext(ctx, queueKey); ok {
		fields = append(fields, slog.String(FieldQueue, queue))
	}
	if id, ok := stringFromContext(ctx, entryIDKey); ok {
		fields = append(fields, slog.String(FieldEntryID, id))
	}
	if rid, ok := stringFromContext(ctx, requestIDKey); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
