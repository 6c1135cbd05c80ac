package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedNote struct {
	ID   uint   `gorm:"primaryKey"`
	Body string `gorm:"size:100;uniqueIndex"`
}

func newTracedDB(t *testing.T, cfg DBTracingConfig) (*gorm.DB, *tracetest.SpanRecorder) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&tracedNote{}))

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg.TracerProvider = tp
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))
	return db, sr
}

func spansNamed(sr *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

func attrsOf(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, a := range s.Attributes() {
		m[a.Key] = a.Value
	}
	return m
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	require.NoError(t, NewDBTracingPlugin(DefaultDBTracingConfig(), zap.New(core)).Register(db))
	assert.Nil(t, db.Callback().Create().Get("otel:before:create"))
	assert.Equal(t, 1, logs.FilterMessage("Database tracing disabled, skipping otelgorm registration").Len())
}

func TestDBTracingPlugin_CreateSpan(t *testing.T) {
	db, sr := newTracedDB(t, DBTracingConfig{Enabled: true, DBName: "crm", SlowQueryThresh: time.Hour})

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedNote{Body: "secret value"}).Error)

	spans := spansNamed(sr, "gorm.Create")
	require.Len(t, spans, 1)
	attrs := attrsOf(spans[0])
	assert.Equal(t, "crm", attrs["db.name"].AsString())
	assert.Equal(t, "traced_notes", attrs["db.sql.table"].AsString())
	assert.Equal(t, int64(1), attrs["db.rows_affected"].AsInt64())
	assert.NotContains(t, attrs["db.statement"].AsString(), "secret value")
	_, slow := attrs["db.slow_query"]
	assert.False(t, slow)
}

func TestDBTracingPlugin_FullSQL(t *testing.T) {
	db, sr := newTracedDB(t, DBTracingConfig{Enabled: true, LogFullSQL: true})

	require.NoError(t, db.Create(&tracedNote{Body: "visible"}).Error)

	spans := spansNamed(sr, "gorm.Create")
	require.Len(t, spans, 1)
	assert.Contains(t, attrsOf(spans[0])["db.statement"].AsString(), "visible")
}

func TestDBTracingPlugin_SlowQuery(t *testing.T) {
	db, sr := newTracedDB(t, DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond})

	var notes []tracedNote
	require.NoError(t, db.Find(&notes).Error)

	spans := spansNamed(sr, "gorm.Query")
	require.Len(t, spans, 1)
	assert.True(t, attrsOf(spans[0])["db.slow_query"].AsBool())
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "slow_query_warning", spans[0].Events()[0].Name)
}

func TestDBTracingPlugin_Error(t *testing.T) {
	db, sr := newTracedDB(t, DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour})

	require.NoError(t, db.Create(&tracedNote{Body: "dup"}).Error)
	require.Error(t, db.Create(&tracedNote{Body: "dup"}).Error)

	spans := spansNamed(sr, "gorm.Create")
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEmpty(t, attrsOf(spans[1])["db.error_type"].AsString())
}

func TestDBTracingPlugin_RecordNotFoundIsNotAnError(t *testing.T) {
	db, sr := newTracedDB(t, DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour})

	var note tracedNote
	require.ErrorIs(t, db.First(&note, 42).Error, gorm.ErrRecordNotFound)

	spans := spansNamed(sr, "gorm.Query")
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	_, flagged := attrsOf(spans[0])["db.error_type"]
	assert.False(t, flagged)
}
