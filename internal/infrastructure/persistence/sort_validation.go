package persistence

import (
	"strings"

	"gorm.io/gorm/schema"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ColumnWhitelist returns the database column names of a parsed model. Only
// these are accepted for ordering and equality filters, so user input never
// reaches SQL as an identifier.
func ColumnWhitelist(s *schema.Schema) map[string]bool {
	allowed := make(map[string]bool, len(s.DBNames))
	for _, name := range s.DBNames {
		allowed[name] = true
	}
	return allowed
}

// defaultSortField picks the first primary key column, falling back to the
// first column of the table.
func defaultSortField(s *schema.Schema) string {
	if len(s.PrimaryFieldDBNames) > 0 {
		return s.PrimaryFieldDBNames[0]
	}
	if len(s.DBNames) > 0 {
		return s.DBNames[0]
	}
	return ""
}
