package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const metricsStartKey = "crm:metrics_query_start"

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration // default 200ms
	PoolStatsInterval  time.Duration // default 15s
}

// DefaultDBMetricsConfig returns default configuration for database metrics.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

// DBMetrics holds the connection pool, statement and unit-of-work
// instruments.
type DBMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge

	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter

	saveTotal    *Counter
	saveDuration *Histogram
	saveRows     *Counter

	config   DBMetricsConfig
	logger   *zap.Logger
	sqlDB    *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopOnce sync.Once
}

// NewDBMetrics creates the instruments on meter
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	m := &DBMetrics{config: cfg, logger: logger, stopCh: make(chan struct{})}
	var err error

	if m.poolConnections, err = NewGauge(meter, "db_pool_connections",
		"Number of connections in the pool by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolConnectionsMax, err = NewGauge(meter, "db_pool_connections_max",
		"Maximum number of connections in the pool", "{connection}"); err != nil {
		return nil, err
	}
	if m.queryTotal, err = NewCounter(meter, "db_query_total",
		"Total number of database statements by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement latency in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total",
		"Total number of statements at or above the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.saveTotal, err = NewCounter(meter, "crm_save_changes_total",
		"Units of work committed or abandoned, by outcome", "{save}"); err != nil {
		return nil, err
	}
	if m.saveDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "crm_save_changes_duration_seconds",
		Description: "Time to commit a unit of work in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.saveRows, err = NewCounter(meter, "crm_save_changes_rows_total",
		"Rows written by committed units of work", "{row}"); err != nil {
		return nil, err
	}

	return m, nil
}

// SetSQLDB sets the pool that StartPoolStatsCollection samples
func (m *DBMetrics) SetSQLDB(sqlDB *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sqlDB = sqlDB
}

// StartPoolStatsCollection samples the pool every PoolStatsInterval until
// Stop is called or ctx ends.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()

	if sqlDB == nil {
		m.logger.Warn("Cannot start pool stats collection: sqlDB not set")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.PoolStatsInterval)
		defer ticker.Stop()

		m.CollectPoolStats(ctx)
		for {
			select {
			case <-ticker.C:
				m.CollectPoolStats(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("Started database connection pool stats collection",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

// CollectPoolStats records one sample of the pool
func (m *DBMetrics) CollectPoolStats(ctx context.Context) {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()
	if sqlDB == nil {
		return
	}

	stats := sqlDB.Stats()
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool stats collection. Safe to call multiple times.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// RecordQuery records one statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration >= m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// RecordSave records one unit of work. The outcome is "ok", "cancelled",
// "conflict" or "error".
func (m *DBMetrics) RecordSave(ctx context.Context, async bool, affected int64, duration time.Duration, err error) {
	mode := "sync"
	if async {
		mode = "async"
	}
	outcome := saveOutcome(err)

	m.saveTotal.Inc(ctx, AttrOutcome.String(outcome), AttrMode.String(mode))
	m.saveDuration.RecordDuration(ctx, duration, AttrOutcome.String(outcome))
	if err == nil && affected > 0 {
		m.saveRows.Add(ctx, affected)
	}
}

func saveOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, shared.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}

// DBMetricsPlugin is a GORM plugin that records every statement
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

// NewDBMetricsPlugin creates a new GORM plugin for database metrics.
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name returns the plugin name.
func (p *DBMetricsPlugin) Name() string {
	return "crm:db_metrics"
}

// Initialize registers the GORM callbacks
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name      string
		operation string
		start     callbackRegistrar
		end       callbackRegistrar
	}{
		{"create", "INSERT", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"query", "SELECT", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"update", "UPDATE", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"row", "", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row")},
		{"raw", "", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}

	for _, h := range hooks {
		operation := h.operation
		if err := h.start.Register("crm_metrics:start_"+h.name, func(db *gorm.DB) {
			db.InstanceSet(metricsStartKey, time.Now())
		}); err != nil {
			return fmt.Errorf("register metrics callback %s: %w", h.name, err)
		}
		if err := h.end.Register("crm_metrics:end_"+h.name, func(db *gorm.DB) {
			p.record(db, operation)
		}); err != nil {
			return fmt.Errorf("register metrics callback %s: %w", h.name, err)
		}
	}
	return nil
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	if db.DryRun {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if operation == "" {
		operation = detectOperationType(db.Statement.SQL.String())
	}

	var duration time.Duration
	if v, ok := db.InstanceGet(metricsStartKey); ok {
		if start, ok := v.(time.Time); ok {
			duration = time.Since(start)
		}
	}
	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, duration)
}

func detectOperationType(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}

// RegisterDBMetrics creates the instruments, registers the statement plugin
// on db and points pool sampling at db's pool. It returns nil when metrics
// are disabled. Callers own Stop.
func RegisterDBMetrics(db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled || meterProvider == nil || !meterProvider.IsEnabled() {
		logger.Debug("Database metrics disabled, skipping registration")
		return nil, nil
	}

	metrics, err := NewDBMetrics(meterProvider.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.SetSQLDB(sqlDB)

	if err := db.Use(NewDBMetricsPlugin(metrics)); err != nil {
		return nil, fmt.Errorf("register db metrics plugin: %w", err)
	}

	logger.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.Duration("pool_stats_interval", cfg.PoolStatsInterval),
	)
	return metrics, nil
}
