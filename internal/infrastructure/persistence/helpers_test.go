package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/schema"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(90 * time.Minute)
)

// stepClock returns the queued times in order and repeats the last one
type stepClock struct {
	times []time.Time
	reads int
}

func (c *stepClock) Now() time.Time {
	i := c.reads
	if i >= len(c.times) {
		i = len(c.times) - 1
	}
	c.reads++
	return c.times[i]
}

func newStepClock(times ...time.Time) *stepClock {
	return &stepClock{times: times}
}

var _ shared.Clock = (*stepClock)(nil)

// newSQLiteDB opens an in-memory database with every CRM and identity table.
// One connection keeps the in-memory database alive and shared.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(schema.AllModels()...))
	return db
}

// newMockMySQLDB creates a GORM connection on the MySQL dialector backed by sqlmock
func newMockMySQLDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}
