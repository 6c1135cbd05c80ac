package schema

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/crm/backend/internal/infrastructure/telemetry"
	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormschema "gorm.io/gorm/schema"
)

const (
	tableOptionsKey = "gorm:table_options"

	// mysqlKeyTooLong is ER_TOO_LONG_KEY, "Specified key was too long"
	mysqlKeyTooLong = 1071
)

var lengthPattern = regexp.MustCompile(`\((\d+)\)`)

// Option configures a Registrar
type Option func(*Registrar)

// WithRules adds table rules. Rules are applied in order, so a later rule
// for the same column wins.
func WithRules(rules ...TableRule) Option {
	return func(r *Registrar) {
		r.rules = append(r.rules, rules...)
	}
}

// WithModels replaces the declared entity sets
func WithModels(models ...any) Option {
	return func(r *Registrar) {
		r.models = append([]any(nil), models...)
	}
}

// Registrar declares the persisted sets and their storage constraints. It
// is built once at startup and handed to whatever bootstraps the database.
type Registrar struct {
	cfg    Config
	logger *zap.Logger
	models []any
	rules  []TableRule
}

// NewRegistrar creates a registrar for every CRM and identity set
func NewRegistrar(cfg Config, logger *zap.Logger, opts ...Option) (*Registrar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registrar{
		cfg:    cfg,
		logger: logger.Named("schema"),
		models: AllModels(),
		rules:  IdentityRules(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the registrar's settings
func (r *Registrar) Config() Config {
	return r.cfg
}

// Models returns the declared sets
func (r *Registrar) Models() []any {
	return append([]any(nil), r.models...)
}

// TableOptions renders the charset, collation and engine options
func (r *Registrar) TableOptions() string {
	return r.cfg.TableOptions()
}

// Declare resolves the schema of every set on db and caps the size of each
// ruled text column to its class limit. A column declared longer than its
// cap is shortened silently; enforcement of the value length is left to the
// database. The capped sizes are written into db's schema cache, so later
// migrations on db use them. Declare is idempotent.
func (r *Registrar) Declare(db *gorm.DB) (*Declaration, error) {
	schemas, err := r.parse(db)
	if err != nil {
		return nil, err
	}

	classesByTable := make(map[string]map[string]ColumnClass, len(r.rules))
	for _, rule := range r.rules {
		s, err := parseModel(db, rule.Model)
		if err != nil {
			return nil, err
		}
		classes := classesByTable[s.Table]
		if classes == nil {
			classes = make(map[string]ColumnClass, len(rule.Columns))
			classesByTable[s.Table] = classes
		}
		for name, class := range rule.Columns {
			field := s.LookUpField(name)
			if field == nil {
				return nil, fmt.Errorf("%w: %s has no field %s", ErrInvalidConfig, s.Table, name)
			}
			if field.DataType != gormschema.String {
				return nil, fmt.Errorf("%w: %s.%s is not a text column", ErrInvalidConfig, s.Table, name)
			}
			if capped := capSize(field.Size, r.limit(class)); capped != field.Size {
				r.logger.Debug("Capping column length",
					zap.String("table", s.Table),
					zap.String("column", field.DBName),
					zap.Int("declared", field.Size),
					zap.Int("capped", capped),
				)
				field.Size = capped
			}
			classes[field.Name] = class
		}
	}

	decl := &Declaration{
		Charset:   r.cfg.Charset,
		Collation: r.cfg.Collation,
		Engine:    r.cfg.Engine,
	}
	for _, s := range schemas {
		decl.Tables = append(decl.Tables, declareTable(s, classesByTable[s.Table]))
	}
	return decl, nil
}

// DeclareOffline resolves the declaration without a database, using the
// MySQL naming and type rules. It backs migration generation.
func (r *Registrar) DeclareOffline() (*Declaration, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		SkipInitializeWithVersion: true,
		DefaultStringSize:         255,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open offline dialect: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return r.Declare(db)
}

// Verify compares the declared column lengths with tables that already
// exist on db. Missing tables and columns are fine; a ruled column of a
// different length is an ErrSchemaConflict.
func (r *Registrar) Verify(ctx context.Context, db *gorm.DB, decl *Declaration) error {
	db = db.WithContext(ctx)
	migrator := db.Migrator()
	var conflicts []string

	for _, model := range r.models {
		s, err := parseModel(db, model)
		if err != nil {
			return err
		}
		if !migrator.HasTable(model) {
			continue
		}
		table, ok := decl.Table(s.Table)
		if !ok {
			continue
		}
		columnTypes, err := migrator.ColumnTypes(model)
		if err != nil {
			return fmt.Errorf("read columns of %s: %w", s.Table, err)
		}
		for _, ct := range columnTypes {
			col, ok := table.Column(ct.Name())
			if !ok || col.Class == Unclassified {
				continue
			}
			length, ok := columnLength(ct)
			if !ok {
				continue
			}
			if int(length) != col.Size {
				conflicts = append(conflicts, fmt.Sprintf("%s.%s is %d characters, declared %d",
					s.Table, col.Name, length, col.Size))
			}
		}
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return fmt.Errorf("%w: %s", ErrSchemaConflict, strings.Join(conflicts, "; "))
	}
	return nil
}

// Apply declares the schema, verifies it against existing tables and
// creates or updates every table. On MySQL each new table gets the
// configured engine, charset and collation.
func (r *Registrar) Apply(ctx context.Context, db *gorm.DB) (_ *Declaration, err error) {
	ctx, span := telemetry.StartComponentSpan(ctx, "schema", "apply",
		telemetry.WithAttribute(telemetry.SpanAttrDialect, db.Dialector.Name()),
		telemetry.WithAttribute(telemetry.SpanAttrCharset, r.cfg.Charset),
		telemetry.WithAttribute(telemetry.SpanAttrCollation, r.cfg.Collation),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	decl, err := r.Declare(db)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrTables, len(decl.Tables))
	if err := r.Verify(ctx, db, decl); err != nil {
		return nil, err
	}

	tx := db.WithContext(ctx)
	if db.Dialector.Name() == "mysql" {
		tx = tx.Set(tableOptionsKey, r.TableOptions())
	}
	if err := tx.AutoMigrate(r.models...); err != nil {
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlKeyTooLong {
			return nil, fmt.Errorf("%w: %v", ErrSchemaConflict, err)
		}
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	r.logger.Info("Schema applied",
		zap.String("dialect", db.Dialector.Name()),
		zap.Int("tables", len(decl.Tables)),
		zap.String("charset", r.cfg.Charset),
		zap.String("collation", r.cfg.Collation),
	)
	return decl, nil
}

func (r *Registrar) parse(db *gorm.DB) ([]*gormschema.Schema, error) {
	schemas := make([]*gormschema.Schema, 0, len(r.models))
	for _, m := range r.models {
		s, err := parseModel(db, m)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

func (r *Registrar) limit(class ColumnClass) int {
	switch class {
	case KeyColumn:
		return r.cfg.KeyLength
	case BoundedColumn:
		return r.cfg.BoundedLength
	default:
		return 0
	}
}

func parseModel(db *gorm.DB, model any) (*gormschema.Schema, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("parse %T: %w", model, err)
	}
	return stmt.Schema, nil
}

// capSize returns min(declared, limit), treating an undeclared size as
// unbounded. A zero limit leaves the size alone.
func capSize(declared, limit int) int {
	if limit <= 0 {
		return declared
	}
	if declared <= 0 || declared > limit {
		return limit
	}
	return declared
}

// columnLength reads a column's character length, falling back to the
// length in its type, e.g. varchar(191).
func columnLength(ct gorm.ColumnType) (int64, bool) {
	if length, ok := ct.Length(); ok && length > 0 {
		return length, true
	}
	typ, ok := ct.ColumnType()
	if !ok || typ == "" {
		typ = ct.DatabaseTypeName()
	}
	if m := lengthPattern.FindStringSubmatch(typ); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		return n, err == nil
	}
	return 0, false
}
