// Package tracing provides OpenTelemetry setup for hlpipe: a provider with
// file, stderr and OTLP exporters, span helpers, and session id propagation.
package tracing

import "context"

type contextKey string

const sessionIDKey contextKey = "session_id"

// SessionIDFromContext returns the session id stored in ctx, or "".
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithSessionID returns ctx carrying id. An empty id leaves ctx
// unchanged.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}
