package identity

import (
	"strings"

	"github.com/crm/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// Role is a named group of users
type Role struct {
	ID               string `gorm:"primaryKey;size:450"`
	Name             string `gorm:"size:256"`
	NormalizedName   string `gorm:"size:256;uniqueIndex:idx_identity_roles_normalized_name"`
	ConcurrencyStamp string

	Users  []UserRole  `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	Claims []RoleClaim `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (Role) TableName() string {
	return "identity_roles"
}

// NewRole creates a role with a fresh identifier
func NewRole(name string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_ROLE_NAME", "Role name cannot be empty")
	}
	return &Role{
		ID:               NewID(),
		Name:             name,
		NormalizedName:   Normalize(name),
		ConcurrencyStamp: NewStamp(),
	}, nil
}

// BeforeSave keeps the normalized name in sync and rotates the concurrency stamp
func (r *Role) BeforeSave(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	r.NormalizedName = Normalize(r.Name)
	r.ConcurrencyStamp = NewStamp()
	return nil
}

// ConcurrencyToken returns the stamp checked by optimistic updates
func (r *Role) ConcurrencyToken() string {
	return r.ConcurrencyStamp
}

// ConcurrencyTokenColumn names the column holding the concurrency stamp
func (r *Role) ConcurrencyTokenColumn() string {
	return "concurrency_stamp"
}

// UserRole assigns a role to a user
type UserRole struct {
	UserID string `gorm:"primaryKey;size:450"`
	RoleID string `gorm:"primaryKey;size:450;index:idx_identity_user_roles_role_id"`
}

// TableName returns the table name for GORM
func (UserRole) TableName() string {
	return "identity_user_roles"
}

// RoleClaim is a claim granted to every member of a role
type RoleClaim struct {
	ID         uint   `gorm:"primaryKey"`
	RoleID     string `gorm:"size:450;not null;index:idx_identity_role_claims_role_id"`
	ClaimType  string `gorm:"type:text"`
	ClaimValue string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (RoleClaim) TableName() string {
	return "identity_role_claims"
}
