package schema

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/mysql"
	gormschema "gorm.io/gorm/schema"
)

// Declaration is the resolved storage schema: every table with its column
// sizes after capping. Two declarations built from the same models and
// Config are equal.
type Declaration struct {
	Charset   string
	Collation string
	Engine    string
	Tables    []TableDeclaration
}

// TableDeclaration describes one table
type TableDeclaration struct {
	Name        string
	Columns     []ColumnDeclaration
	PrimaryKey  []string
	Indexes     []IndexDeclaration
	ForeignKeys []ForeignKeyDeclaration
}

// ColumnDeclaration describes one column. Size is zero for non-text columns
// and for text columns with no declared length.
type ColumnDeclaration struct {
	Name       string
	Field      string
	Class      ColumnClass
	Size       int
	SQLType    string // MySQL column definition, e.g. "varchar(191) NOT NULL"
	PrimaryKey bool
}

// IndexDeclaration describes a secondary index
type IndexDeclaration struct {
	Name    string
	Unique  bool
	Columns []string
}

// ForeignKeyDeclaration describes a foreign key constraint
type ForeignKeyDeclaration struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

// Table returns the declaration of the named table
func (d *Declaration) Table(name string) (TableDeclaration, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableDeclaration{}, false
}

// Column returns the declaration of the named column
func (t TableDeclaration) Column(name string) (ColumnDeclaration, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDeclaration{}, false
}

// ddlDialect renders MySQL column types independently of the connected
// dialect, so migration files are the same whatever database runs the tool.
var ddlDialect = func() mysql.Dialector {
	precision := 3
	return mysql.Dialector{Config: &mysql.Config{
		DefaultStringSize:        255,
		DefaultDatetimePrecision: &precision,
	}}
}()

func declareTable(s *gormschema.Schema, classes map[string]ColumnClass) TableDeclaration {
	t := TableDeclaration{Name: s.Table}

	for _, dbName := range s.DBNames {
		f := s.FieldsByDBName[dbName]
		t.Columns = append(t.Columns, ColumnDeclaration{
			Name:       f.DBName,
			Field:      f.Name,
			Class:      classes[f.Name],
			Size:       stringSize(f),
			SQLType:    columnSQL(f),
			PrimaryKey: f.PrimaryKey,
		})
		if f.PrimaryKey {
			t.PrimaryKey = append(t.PrimaryKey, f.DBName)
		}
	}

	for _, idx := range s.ParseIndexes() {
		decl := IndexDeclaration{Name: idx.Name, Unique: idx.Class == "UNIQUE"}
		for _, opt := range idx.Fields {
			decl.Columns = append(decl.Columns, opt.DBName)
		}
		t.Indexes = append(t.Indexes, decl)
	}
	sort.Slice(t.Indexes, func(i, j int) bool { return t.Indexes[i].Name < t.Indexes[j].Name })

	for _, rel := range s.Relationships.Relations {
		c := rel.ParseConstraint()
		if c == nil || c.Schema != s {
			continue
		}
		fk := ForeignKeyDeclaration{
			Name:     c.Name,
			RefTable: c.ReferenceSchema.Table,
			OnDelete: c.OnDelete,
			OnUpdate: c.OnUpdate,
		}
		for _, f := range c.ForeignKeys {
			fk.Columns = append(fk.Columns, f.DBName)
		}
		for _, f := range c.References {
			fk.RefColumns = append(fk.RefColumns, f.DBName)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	sort.Slice(t.ForeignKeys, func(i, j int) bool { return t.ForeignKeys[i].Name < t.ForeignKeys[j].Name })

	return t
}

func stringSize(f *gormschema.Field) int {
	if f.DataType != gormschema.String {
		return 0
	}
	return f.Size
}

func columnSQL(f *gormschema.Field) string {
	// DataTypeOf may fill defaults on the field, so it gets a copy
	fc := *f
	sql := ddlDialect.DataTypeOf(&fc)
	if fc.NotNull || fc.PrimaryKey {
		if !strings.Contains(sql, "NOT NULL") {
			sql = strings.TrimSuffix(sql, " NULL") + " NOT NULL"
		}
	}
	if def := columnDefault(&fc); def != "" {
		sql += " DEFAULT " + def
	}
	return sql
}

func columnDefault(f *gormschema.Field) string {
	if !f.HasDefaultValue || f.AutoIncrement {
		return ""
	}
	switch v := f.DefaultValueInterface.(type) {
	case nil:
		return f.DefaultValue
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return fmt.Sprint(v)
	}
}

// DDL renders the declaration as MySQL CREATE TABLE statements, in
// declaration order, each terminated by a semicolon.
func (d *Declaration) DDL() string {
	var b strings.Builder
	options := fmt.Sprintf("ENGINE=%s DEFAULT CHARSET=%s COLLATE=%s", d.Engine, d.Charset, d.Collation)
	for i, t := range d.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quote(t.Name))
		lines := make([]string, 0, len(t.Columns)+len(t.Indexes)+len(t.ForeignKeys)+1)
		for _, c := range t.Columns {
			lines = append(lines, fmt.Sprintf("  %s %s", quote(c.Name), c.SQLType))
		}
		if len(t.PrimaryKey) > 0 {
			lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", quoteList(t.PrimaryKey)))
		}
		for _, idx := range t.Indexes {
			kind := "INDEX"
			if idx.Unique {
				kind = "UNIQUE INDEX"
			}
			lines = append(lines, fmt.Sprintf("  %s %s (%s)", kind, quote(idx.Name), quoteList(idx.Columns)))
		}
		for _, fk := range t.ForeignKeys {
			line := fmt.Sprintf("  CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
				quote(fk.Name), quoteList(fk.Columns), quote(fk.RefTable), quoteList(fk.RefColumns))
			if fk.OnDelete != "" {
				line += " ON DELETE " + fk.OnDelete
			}
			if fk.OnUpdate != "" {
				line += " ON UPDATE " + fk.OnUpdate
			}
			lines = append(lines, line)
		}
		b.WriteString(strings.Join(lines, ",\n"))
		fmt.Fprintf(&b, "\n) %s;\n", options)
	}
	return b.String()
}

// DropDDL renders DROP TABLE statements in reverse declaration order
func (d *Declaration) DropDDL() string {
	var b strings.Builder
	for i := len(d.Tables) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", quote(d.Tables[i].Name))
	}
	return b.String()
}

func quote(name string) string {
	return "`" + name + "`"
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ",")
}
