package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

// GenerateTraceID mints a trace ID for work that starts outside an HTTP
// request, like queued ingest jobs.
func GenerateTraceID() string {
	return uuid.New().String()
}

// EnsureTraceID returns the context unchanged if it already carries a trace
// ID, otherwise attaches a fresh one.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, GenerateTraceID())
	}
	return ctx
}
