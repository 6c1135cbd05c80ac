package schema

import (
	"context"
	"testing"

	"github.com/crm/backend/internal/domain/identity"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func applySpan(t *testing.T, sr *tracetest.SpanRecorder) (sdktrace.ReadOnlySpan, map[attribute.Key]attribute.Value) {
	t.Helper()
	for _, s := range sr.Ended() {
		if s.Name() != "schema.apply" {
			continue
		}
		attrs := make(map[attribute.Key]attribute.Value)
		for _, kv := range s.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		return s, attrs
	}
	t.Fatal("no schema.apply span")
	return nil, nil
}

func TestRegistrar_Apply_Span(t *testing.T) {
	sr := recordSpans(t)

	_, err := newRegistrar(t).Apply(context.Background(), newSQLiteDB(t))
	require.NoError(t, err)

	span, attrs := applySpan(t, sr)
	assert.Equal(t, codes.Unset, span.Status().Code)
	assert.Equal(t, "sqlite", attrs[telemetry.SpanAttrDialect].AsString())
	assert.Equal(t, "utf8mb4", attrs[telemetry.SpanAttrCharset].AsString())
	assert.Equal(t, "utf8mb4_unicode_ci", attrs[telemetry.SpanAttrCollation].AsString())
	assert.EqualValues(t, len(AllModels()), attrs[telemetry.SpanAttrTables].AsInt64())
}

func TestRegistrar_Apply_SpanRecordsConflict(t *testing.T) {
	sr := recordSpans(t)
	db := newSQLiteDB(t)
	require.NoError(t, db.Exec("CREATE TABLE `identity_roles` (`id` varchar(450) NOT NULL, `name` varchar(256), `normalized_name` varchar(256), `concurrency_stamp` text, PRIMARY KEY (`id`))").Error)

	_, err := newRegistrar(t, WithModels(&identity.Role{})).Apply(context.Background(), db)
	require.ErrorIs(t, err, ErrSchemaConflict)

	span, _ := applySpan(t, sr)
	assert.Equal(t, codes.Error, span.Status().Code)
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "exception", span.Events()[0].Name)
}
