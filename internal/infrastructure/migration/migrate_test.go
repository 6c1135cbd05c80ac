package migration

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func writeMigrations(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"000001_customers.up.sql":   "CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);",
		"000001_customers.down.sql": "DROP TABLE customers;",
		"000002_leads.up.sql":       "CREATE TABLE leads (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id));",
		"000002_leads.down.sql":     "DROP TABLE leads;",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func newSQLiteMigrator(t *testing.T, logger *zap.Logger) (*Migrator, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)

	m, err := New(db, DriverSQLite, writeMigrations(t), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestMigrator_UpDown(t *testing.T) {
	m, db := newSQLiteMigrator(t, zaptest.NewLogger(t))

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())
	assert.True(t, tableExists(t, db, "customers"))
	assert.True(t, tableExists(t, db, "leads"))

	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	// nothing left to apply
	require.NoError(t, m.Up())

	require.NoError(t, m.Steps(-1))
	assert.False(t, tableExists(t, db, "leads"))
	assert.True(t, tableExists(t, db, "customers"))

	require.NoError(t, m.Down())
	assert.False(t, tableExists(t, db, "customers"))
	require.NoError(t, m.Down())
}

func TestMigrator_GoToAndForce(t *testing.T) {
	m, db := newSQLiteMigrator(t, zaptest.NewLogger(t))

	require.NoError(t, m.GoTo(1))
	assert.True(t, tableExists(t, db, "customers"))
	assert.False(t, tableExists(t, db, "leads"))
	require.NoError(t, m.GoTo(1))

	require.NoError(t, m.Force(2))
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
	assert.False(t, tableExists(t, db, "leads"))
}

func TestMigrator_Logging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m, _ := newSQLiteMigrator(t, zap.New(core))

	require.NoError(t, m.Up())

	entries := logs.FilterMessage("Migrations completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "migrate", entries[0].LoggerName)
	assert.EqualValues(t, 2, entries[0].ContextMap()["version"])
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(nil, "oracle", t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "file://migrations", sourceURL("migrations"))
	assert.Equal(t, "file:///srv/migrations", sourceURL("file:///srv/migrations"))
}
