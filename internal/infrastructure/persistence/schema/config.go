// Package schema declares the physical storage schema of the CRM and
// identity tables: which entity sets exist, how long their text columns may
// be, and which character set, collation and engine every table gets.
//
// MySQL InnoDB with the legacy COMPACT row format indexes at most 767 bytes
// per key column. Under utf8mb4 a character takes up to four bytes, so every
// identifier and every indexed text column is capped at 191 characters.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidConfig is returned for schema settings that cannot produce an
	// index-safe schema
	ErrInvalidConfig = errors.New("schema: invalid configuration")

	// ErrSchemaConflict is returned when the declared schema disagrees with
	// tables that already exist. It is fatal at startup.
	ErrSchemaConflict = errors.New("schema: declaration conflicts with existing schema")
)

// Config holds the schema-wide storage settings
type Config struct {
	Charset        string `validate:"required,sqlident"`
	Collation      string `validate:"required,sqlident"`
	Engine         string `validate:"required,sqlident"`
	IndexByteLimit int    `validate:"gt=0"`
	BytesPerChar   int    `validate:"gte=1,lte=4"`
	KeyLength      int    `validate:"gt=0"`
	BoundedLength  int    `validate:"gtefield=KeyLength"`
}

// DefaultConfig returns utf8mb4 settings for the 767-byte InnoDB index limit
func DefaultConfig() Config {
	return Config{
		Charset:        "utf8mb4",
		Collation:      "utf8mb4_unicode_ci",
		Engine:         "InnoDB",
		IndexByteLimit: 767,
		BytesPerChar:   4,
		KeyLength:      MaxKeyLength(767, 4),
		BoundedLength:  255,
	}
}

// FromConfig converts the application's schema section. The result still
// needs Validate.
func FromConfig(c config.SchemaConfig) Config {
	return Config{
		Charset:        c.Charset,
		Collation:      c.Collation,
		Engine:         c.Engine,
		IndexByteLimit: c.IndexByteLimit,
		BytesPerChar:   c.BytesPerChar,
		KeyLength:      c.KeyLength,
		BoundedLength:  c.BoundedLength,
	}
}

var (
	validate      = newValidator()
	sqlIdentifier = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// newValidator registers sqlident, which restricts values that end up in
// DDL to plain identifiers.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlIdentifier.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks the settings. A key length whose widest encoding exceeds
// the index byte limit is rejected, as is a collation of another charset.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if max := MaxKeyLength(c.IndexByteLimit, c.BytesPerChar); c.KeyLength > max {
		return fmt.Errorf("%w: key length %d exceeds %d characters (%d bytes / %d per char)",
			ErrInvalidConfig, c.KeyLength, max, c.IndexByteLimit, c.BytesPerChar)
	}
	if !strings.HasPrefix(c.Collation, c.Charset+"_") {
		return fmt.Errorf("%w: collation %s does not belong to charset %s", ErrInvalidConfig, c.Collation, c.Charset)
	}
	return nil
}

// TableOptions renders the options appended to every CREATE TABLE
func (c Config) TableOptions() string {
	return fmt.Sprintf("ENGINE=%s DEFAULT CHARSET=%s COLLATE=%s", c.Engine, c.Charset, c.Collation)
}

// MaxKeyLength is the largest character count whose widest encoding fits in
// indexByteLimit bytes: 191 for 767 bytes of utf8mb4.
func MaxKeyLength(indexByteLimit, bytesPerChar int) int {
	if indexByteLimit <= 0 || bytesPerChar <= 0 {
		return 0
	}
	return indexByteLimit / bytesPerChar
}
