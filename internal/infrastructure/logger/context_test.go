package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns nop logger when none attached", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("returns the attached logger", func(t *testing.T) {
		l := zap.NewExample()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-42")

	assert.Equal(t, "req-42", GetRequestID(ctx))
	l.Info("hello")
	FromContext(ctx).Info("again")

	entries := logs.All()
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "req-42", e.ContextMap()["request_id"])
	}
}

func TestWithOperation(t *testing.T) {
	ctx := WithOperation(context.Background(), "save_changes")
	assert.Equal(t, "save_changes", GetOperation(ctx))
	assert.Empty(t, GetOperation(context.Background()))
}

func TestWithTraceContext(t *testing.T) {
	t.Run("no span leaves logger unchanged", func(t *testing.T) {
		l := zap.NewNop()
		assert.Same(t, l, WithTraceContext(context.Background(), l))
	})

	t.Run("valid span adds trace fields", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		defer func() { _ = tp.Shutdown(context.Background()) }()
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		core, logs := observer.New(zap.InfoLevel)
		WithTraceContext(ctx, zap.New(core)).Info("traced")

		fields := logs.All()[0].ContextMap()
		assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	})
}

func TestContextFields(t *testing.T) {
	assert.Empty(t, contextFields(context.Background()))

	ctx := context.WithValue(context.Background(), requestIDKey, "r1")
	ctx = WithOperation(ctx, "migrate")
	assert.Len(t, contextFields(ctx), 2)
}
