package schema

import (
	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/identity"
)

// ColumnClass decides which length cap applies to a text column
type ColumnClass int

const (
	// Unclassified columns keep whatever size the model declares
	Unclassified ColumnClass = iota
	// KeyColumn is an identifier or indexed column, capped at Config.KeyLength
	KeyColumn
	// BoundedColumn is a bounded, non-indexed column, capped at Config.BoundedLength
	BoundedColumn
)

// String returns the class name
func (c ColumnClass) String() string {
	switch c {
	case KeyColumn:
		return "key"
	case BoundedColumn:
		return "bounded"
	default:
		return "unclassified"
	}
}

// TableRule assigns column classes to the fields of one model. Columns are
// keyed by Go field name.
type TableRule struct {
	Model   any
	Columns map[string]ColumnClass
}

// IdentityRules returns the length rules for the identity tables. Every copy
// of a user or role identifier in an association table is a key column, so
// composite keys and foreign keys stay within the index limit.
func IdentityRules() []TableRule {
	return []TableRule{
		{
			Model: &identity.User{},
			Columns: map[string]ColumnClass{
				"ID":                 KeyColumn,
				"UserName":           KeyColumn,
				"NormalizedUserName": KeyColumn,
				"Email":              BoundedColumn,
				"NormalizedEmail":    KeyColumn,
				"SecurityStamp":      BoundedColumn,
				"ConcurrencyStamp":   BoundedColumn,
				"PhoneNumber":        BoundedColumn,
			},
		},
		{
			Model: &identity.Role{},
			Columns: map[string]ColumnClass{
				"ID":               KeyColumn,
				"Name":             KeyColumn,
				"NormalizedName":   KeyColumn,
				"ConcurrencyStamp": BoundedColumn,
			},
		},
		{
			Model: &identity.UserRole{},
			Columns: map[string]ColumnClass{
				"UserID": KeyColumn,
				"RoleID": KeyColumn,
			},
		},
		{
			Model: &identity.UserClaim{},
			Columns: map[string]ColumnClass{
				"UserID": KeyColumn,
			},
		},
		{
			Model: &identity.RoleClaim{},
			Columns: map[string]ColumnClass{
				"RoleID": KeyColumn,
			},
		},
		{
			Model: &identity.UserLogin{},
			Columns: map[string]ColumnClass{
				"LoginProvider":       KeyColumn,
				"ProviderKey":         KeyColumn,
				"ProviderDisplayName": BoundedColumn,
				"UserID":              KeyColumn,
			},
		},
		{
			Model: &identity.UserToken{},
			Columns: map[string]ColumnClass{
				"UserID":        KeyColumn,
				"LoginProvider": KeyColumn,
				"Name":          KeyColumn,
			},
		},
	}
}

// DomainModels lists the CRM entity sets in dependency order
func DomainModels() []any {
	return []any{
		&crm.Address{},
		&crm.Customer{},
		&crm.Contact{},
		&crm.Opportunity{},
		&crm.Lead{},
		&crm.ProductCategory{},
		&crm.ServiceCategory{},
		&crm.Vendor{},
		&crm.Product{},
		&crm.Service{},
		&crm.Sale{},
		&crm.SupportCase{},
		&crm.TodoTask{},
		&crm.Reward{},
	}
}

// IdentityModels lists the identity entity sets
func IdentityModels() []any {
	rules := IdentityRules()
	models := make([]any, 0, len(rules))
	for _, r := range rules {
		models = append(models, r.Model)
	}
	return models
}

// AllModels lists every persisted set, identity tables first
func AllModels() []any {
	return append(IdentityModels(), DomainModels()...)
}
