package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/crm/backend/internal/infrastructure/persistence/schema"
)

// ErrVersionExists is returned when a migration with the same version is
// already present in the directory.
var ErrVersionExists = errors.New("migration version already exists")

const versionLayout = "20060102150405"

const migrationUpTemplate = `-- Migration: {{.Name}}
-- Created: {{.Timestamp}}
-- Description: {{.Description}}

{{if .UpSQL}}{{.UpSQL}}{{else}}-- Write your UP migration SQL here
{{end}}`

const migrationDownTemplate = `-- Migration: {{.Name}} (Rollback)
-- Created: {{.Timestamp}}
-- Description: Rollback for {{.Description}}

{{if .DownSQL}}{{.DownSQL}}{{else}}-- Write your DOWN migration SQL here
{{end}}`

var (
	upTemplate   = template.Must(template.New("up").Parse(migrationUpTemplate))
	downTemplate = template.Must(template.New("down").Parse(migrationDownTemplate))
)

// Draft describes a migration pair before it is written to disk.
type Draft struct {
	Name        string
	Description string
	UpSQL       string
	DownSQL     string
	CreatedAt   time.Time
}

// MigrationFile represents a migration file pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpSQL       string
	DownSQL     string
	UpPath      string
	DownPath    string
}

// CreateMigration creates an empty migration file pair stamped with the
// current time.
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	return Generate(migrationsDir, Draft{
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	})
}

// CreateSchemaMigration writes a migration pair whose up file creates every
// table of decl and whose down file drops them again.
func CreateSchemaMigration(migrationsDir, name string, decl *schema.Declaration, at time.Time) (*MigrationFile, error) {
	if decl == nil || len(decl.Tables) == 0 {
		return nil, errors.New("schema declaration has no tables")
	}
	return Generate(migrationsDir, Draft{
		Name:        name,
		Description: fmt.Sprintf("%d tables, %s/%s on %s", len(decl.Tables), decl.Charset, decl.Collation, decl.Engine),
		UpSQL:       decl.DDL(),
		DownSQL:     decl.DropDDL(),
		CreatedAt:   at,
	})
}

// Generate writes the up and down files for d. The version is derived
// from d.CreatedAt in UTC so files sort in creation order.
func Generate(migrationsDir string, d Draft) (*MigrationFile, error) {
	slug := sanitizeName(d.Name)
	if slug == "" {
		return nil, fmt.Errorf("invalid migration name %q", d.Name)
	}

	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	created := d.CreatedAt.UTC()
	version := created.Format(versionLayout)

	existing, err := ListMigrations(migrationsDir)
	if err != nil {
		return nil, err
	}
	for _, base := range existing {
		if strings.HasPrefix(base, version+"_") {
			return nil, fmt.Errorf("%w: %s", ErrVersionExists, base)
		}
	}

	baseName := version + "_" + slug
	mf := &MigrationFile{
		Version:     version,
		Name:        d.Name,
		Description: d.Description,
		Timestamp:   created.Format(time.RFC3339),
		UpSQL:       d.UpSQL,
		DownSQL:     d.DownSQL,
		UpPath:      filepath.Join(migrationsDir, baseName+".up.sql"),
		DownPath:    filepath.Join(migrationsDir, baseName+".down.sql"),
	}

	if err := createMigrationFile(mf.UpPath, upTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}

	if err := createMigrationFile(mf.DownPath, downTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}

	return mf, nil
}

func createMigrationFile(path string, tmpl *template.Template, data *MigrationFile) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

// sanitizeName converts a migration name to a safe file name format
func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			result = append(result, c)
		case c >= 'A' && c <= 'Z':
			result = append(result, c+'a'-'A')
		case c == ' ' || c == '-' || c == '_':
			if len(result) > 0 && result[len(result)-1] != '_' {
				result = append(result, '_')
			}
		}
	}
	return strings.TrimSuffix(string(result), "_")
}

// ListMigrations returns the base names of all migrations in a directory,
// in version order.
func ListMigrations(migrationsDir string) ([]string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]string, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok && base != "" {
			migrations = append(migrations, base)
		}
	}

	return migrations, nil
}
