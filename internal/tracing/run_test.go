package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecorder() (*tracetest.SpanRecorder, trace.Tracer) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return recorder, provider.Tracer("test")
}

func TestRun_Success(t *testing.T) {
	recorder, tracer := newRecorder()
	ctx := ContextWithSessionID(context.Background(), "sess-42")

	err := Run(ctx, tracer, SpanDispatch, func(ctx context.Context, span trace.Span) error {
		span.AddEvent(EventRendered)
		return nil
	}, attribute.String(AttrRequestLanguage, "go"))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	require.Equal(t, SpanDispatch, span.Name())
	require.Equal(t, codes.Ok, span.Status().Code)
	require.Contains(t, span.Attributes(), attribute.String(AttrSessionID, "sess-42"))
	require.Contains(t, span.Attributes(), attribute.String(AttrRequestLanguage, "go"))
	require.Len(t, span.Events(), 1)
}

func TestRun_Error(t *testing.T) {
	recorder, tracer := newRecorder()
	boom := errors.New("boom")

	err := Run(context.Background(), tracer, SpanDispatch, func(ctx context.Context, span trace.Span) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
}

func TestRun_NilTracer(t *testing.T) {
	called := false
	err := Run(context.Background(), nil, SpanDispatch, func(ctx context.Context, span trace.Span) error {
		called = true
		require.NotNil(t, span)
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
}

func TestSessionIDContext(t *testing.T) {
	require.Empty(t, SessionIDFromContext(context.Background()))
	//nolint:staticcheck // nil context handling
	require.Empty(t, SessionIDFromContext(nil))

	ctx := ContextWithSessionID(context.Background(), "a")
	require.Equal(t, "a", SessionIDFromContext(ctx))
	require.Equal(t, "a", SessionIDFromContext(ContextWithSessionID(ctx, "")))
	require.Equal(t, "b", SessionIDFromContext(ContextWithSessionID(ctx, "b")))
}
