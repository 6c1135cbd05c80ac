package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crm/backend/internal/infrastructure/persistence/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add customers table", "add_customers_table"},
		{"Add-Customers-Table", "add_customers_table"},
		{"ADD_CUSTOMERS_TABLE", "add_customers_table"},
		{"add__customers__table", "add_customers_table"},
		{"Add Leads 123", "add_leads_123"},
		{"create-product-category", "create_product_category"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add customers table", "Create customers table")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14)
	assert.True(t, strings.HasSuffix(mf.UpPath, ".up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, ".down.sql"))
	assert.Equal(t,
		strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql"),
		strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add customers table")
	assert.Contains(t, string(up), "-- Description: Create customers table")
	assert.Contains(t, string(up), "Write your UP migration SQL here")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")
	assert.Contains(t, string(down), "Write your DOWN migration SQL here")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "test", "test migration")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGenerate(t *testing.T) {
	t.Run("version comes from the UTC creation time", func(t *testing.T) {
		dir := t.TempDir()
		local := created.In(time.FixedZone("UTC+8", 8*3600))

		mf, err := Generate(dir, Draft{Name: "seed", CreatedAt: local})
		require.NoError(t, err)
		assert.Equal(t, "20260314092653", mf.Version)
		assert.Equal(t, "2026-03-14T09:26:53Z", mf.Timestamp)
		assert.Equal(t, filepath.Join(dir, "20260314092653_seed.up.sql"), mf.UpPath)
	})

	t.Run("writes the provided SQL", func(t *testing.T) {
		dir := t.TempDir()

		mf, err := Generate(dir, Draft{
			Name:      "leads",
			UpSQL:     "CREATE TABLE leads (id INTEGER);\n",
			DownSQL:   "DROP TABLE leads;\n",
			CreatedAt: created,
		})
		require.NoError(t, err)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(string(up), "\nCREATE TABLE leads (id INTEGER);\n"))
		assert.NotContains(t, string(up), "Write your UP")

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(string(down), "\nDROP TABLE leads;\n"))
	})

	t.Run("rejects a duplicate version", func(t *testing.T) {
		dir := t.TempDir()

		_, err := Generate(dir, Draft{Name: "first", CreatedAt: created})
		require.NoError(t, err)

		_, err = Generate(dir, Draft{Name: "second", CreatedAt: created})
		require.ErrorIs(t, err, ErrVersionExists)

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"20260314092653_first"}, migrations)
	})

	t.Run("rejects a name with no usable characters", func(t *testing.T) {
		_, err := Generate(t.TempDir(), Draft{Name: "!!!", CreatedAt: created})
		require.Error(t, err)
	})
}

func TestCreateSchemaMigration(t *testing.T) {
	t.Run("seeds both files from the declaration", func(t *testing.T) {
		dir := t.TempDir()
		decl := &schema.Declaration{
			Charset:   "utf8mb4",
			Collation: "utf8mb4_unicode_ci",
			Engine:    "InnoDB",
			Tables: []schema.TableDeclaration{
				{
					Name:       "identity_roles",
					Columns:    []schema.ColumnDeclaration{{Name: "id", SQLType: "varchar(191) NOT NULL", PrimaryKey: true}},
					PrimaryKey: []string{"id"},
				},
				{
					Name:       "customers",
					Columns:    []schema.ColumnDeclaration{{Name: "id", SQLType: "bigint unsigned AUTO_INCREMENT NOT NULL", PrimaryKey: true}},
					PrimaryKey: []string{"id"},
				},
			},
		}

		mf, err := CreateSchemaMigration(dir, "initial schema", decl, created)
		require.NoError(t, err)
		assert.Equal(t, "2 tables, utf8mb4/utf8mb4_unicode_ci on InnoDB", mf.Description)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS `identity_roles` (\n  `id` varchar(191) NOT NULL,\n  PRIMARY KEY (`id`)\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;")

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Less(t,
			strings.Index(string(down), "DROP TABLE IF EXISTS `customers`;"),
			strings.Index(string(down), "DROP TABLE IF EXISTS `identity_roles`;"))
	})

	t.Run("rejects an empty declaration", func(t *testing.T) {
		_, err := CreateSchemaMigration(t.TempDir(), "empty", &schema.Declaration{}, created)
		require.Error(t, err)

		_, err = CreateSchemaMigration(t.TempDir(), "nil", nil, created)
		require.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"000003_add_products.up.sql",
		"000003_add_products.down.sql",
		"000001_init_schema.up.sql",
		"000001_init_schema.down.sql",
		"000002_add_leads.up.sql",
		"000002_add_leads.down.sql",
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0o644))
	}

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init_schema", "000002_add_leads", "000003_add_products"}, migrations)
}

func TestListMigrations_EmptyDirectory(t *testing.T) {
	migrations, err := ListMigrations(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	migrations, err := ListMigrations("/nonexistent/path/to/migrations")
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrations_IgnoresNonMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"000001_init.up.sql", "000001_init.down.sql", "README.md", "config.yaml", ".gitkeep"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("test"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init"}, migrations)
}
