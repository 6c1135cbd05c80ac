package config

import (
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "crm-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverMySQL, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 3306, cfg.Database.Port)
		assert.Equal(t, "crm", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowThreshold)
		assert.False(t, cfg.Telemetry.MetricsEnabled)
		assert.Equal(t, 60*time.Second, cfg.Telemetry.MetricsExportInterval)
		assert.Equal(t, 15*time.Second, cfg.Telemetry.PoolStatsInterval)
		assert.Equal(t, "info", cfg.Telemetry.LogsLevel)
	})

	t.Run("applies schema defaults for utf8mb4 on legacy InnoDB", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "utf8mb4", cfg.Schema.Charset)
		assert.Equal(t, "utf8mb4_unicode_ci", cfg.Schema.Collation)
		assert.Equal(t, "InnoDB", cfg.Schema.Engine)
		assert.Equal(t, 767, cfg.Schema.IndexByteLimit)
		assert.Equal(t, 4, cfg.Schema.BytesPerChar)
		assert.Equal(t, 191, cfg.Schema.KeyLength)
		assert.Equal(t, 255, cfg.Schema.BoundedLength)
		assert.Equal(t, "utf8mb4", cfg.Database.Charset)
		assert.Equal(t, "utf8mb4_unicode_ci", cfg.Database.Collation)
	})

	t.Run("loads values from environment variables with CRM prefix", func(t *testing.T) {
		t.Setenv("CRM_APP_NAME", "test-app")
		t.Setenv("CRM_APP_PORT", "9000")
		t.Setenv("CRM_DATABASE_HOST", "testdb.local")
		t.Setenv("CRM_DATABASE_PORT", "3307")
		t.Setenv("CRM_DATABASE_USER", "tester")
		t.Setenv("CRM_DATABASE_PASSWORD", "secret")
		t.Setenv("CRM_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("CRM_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("CRM_SCHEMA_COLLATION", "utf8mb4_general_ci")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 3307, cfg.Database.Port)
		assert.Equal(t, "tester", cfg.Database.User)
		assert.Equal(t, "secret", cfg.Database.Password)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "utf8mb4_general_ci", cfg.Schema.Collation)
		assert.Equal(t, "utf8mb4_general_ci", cfg.Database.Collation)
	})

	t.Run("postgres driver defaults to port 5432", func(t *testing.T) {
		t.Setenv("CRM_DATABASE_DRIVER", "postgres")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 5432, cfg.Database.Port)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		t.Setenv("CRM_DATABASE_DRIVER", "oracle")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("CRM_DATABASE_MAX_OPEN_CONNS", "5")
		t.Setenv("CRM_DATABASE_MAX_IDLE_CONNS", "10")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
	})

	t.Run("rejects key length above the index byte limit", func(t *testing.T) {
		t.Setenv("CRM_SCHEMA_KEY_LENGTH", "255")
		t.Setenv("CRM_SCHEMA_BOUNDED_LENGTH", "255")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema.key_length")
	})

	t.Run("accepts a larger key length when the index limit allows it", func(t *testing.T) {
		t.Setenv("CRM_SCHEMA_INDEX_BYTE_LIMIT", "3072")
		t.Setenv("CRM_SCHEMA_KEY_LENGTH", "255")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 255, cfg.Schema.KeyLength)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	t.Run("requires database.password in production", func(t *testing.T) {
		t.Setenv("CRM_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")
	})

	t.Run("forbids sqlite in production", func(t *testing.T) {
		t.Setenv("CRM_APP_ENV", "production")
		t.Setenv("CRM_DATABASE_DRIVER", "sqlite")
		t.Setenv("CRM_DATABASE_PASSWORD", "x")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sqlite")
	})

	t.Run("forbids full SQL in traces in production", func(t *testing.T) {
		t.Setenv("CRM_APP_ENV", "production")
		t.Setenv("CRM_DATABASE_PASSWORD", "x")
		t.Setenv("CRM_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		t.Setenv("CRM_APP_ENV", "production")
		t.Setenv("CRM_DATABASE_PASSWORD", "x")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates a mysql DSN that round-trips through the driver", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:    DriverMySQL,
			Host:      "db.local",
			Port:      3306,
			User:      "crm",
			Password:  "p@ss:word",
			DBName:    "crm",
			Charset:   "utf8mb4",
			Collation: "utf8mb4_unicode_ci",
		}

		dsn := cfg.DSN()
		assert.True(t, strings.HasPrefix(dsn, "crm:p@ss:word@tcp(db.local:3306)/crm?"), dsn)
		assert.Contains(t, dsn, "parseTime=true")
		assert.Contains(t, dsn, "charset=utf8mb4")

		parsed, err := mysql.ParseDSN(dsn)
		require.NoError(t, err)
		assert.Equal(t, "p@ss:word", parsed.Passwd)
		assert.Equal(t, "db.local:3306", parsed.Addr)
		assert.Equal(t, "utf8mb4_unicode_ci", parsed.Collation)
		assert.True(t, parsed.ParseTime)
		assert.True(t, parsed.ClientFoundRows)
		assert.Equal(t, time.UTC, parsed.Loc)
	})

	t.Run("generates a postgres URL with escaped password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "p@ss/word",
			DBName:   "crm",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.True(t, strings.HasPrefix(dsn, "postgres://"))
		assert.Contains(t, dsn, "p%40ss%2Fword")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("sqlite DSN is the database path", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: DriverSQLite, DBName: "file::memory:?cache=shared"}
		assert.Equal(t, "file::memory:?cache=shared", cfg.DSN())
	})

	t.Run("migrate URL carries the driver scheme", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: DriverMySQL, Host: "h", Port: 1, User: "u", DBName: "d", Charset: "utf8mb4"}
		assert.True(t, strings.HasPrefix(cfg.MigrateURL(), "mysql://u@tcp(h:1)/d?"))
	})
}
