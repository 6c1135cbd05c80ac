package identity

import (
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// User is an identity principal. Column sizes declared here are the
// framework defaults; the schema registrar caps them to index-safe lengths
// before any table is created.
type User struct {
	ID                   string `gorm:"primaryKey;size:450"`
	UserName             string `gorm:"size:256"`
	NormalizedUserName   string `gorm:"size:256;uniqueIndex:idx_identity_users_normalized_user_name"`
	Email                string `gorm:"size:256"`
	NormalizedEmail      string `gorm:"size:256;index:idx_identity_users_normalized_email"`
	EmailConfirmed       bool   `gorm:"not null;default:false"`
	PasswordHash         string `gorm:"type:text"`
	SecurityStamp        string
	ConcurrencyStamp     string
	PhoneNumber          string
	PhoneNumberConfirmed bool `gorm:"not null;default:false"`
	TwoFactorEnabled     bool `gorm:"not null;default:false"`
	LockoutEnd           *time.Time
	LockoutEnabled       bool `gorm:"not null;default:false"`
	AccessFailedCount    int  `gorm:"not null;default:0"`

	Roles  []UserRole  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Claims []UserClaim `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Logins []UserLogin `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Tokens []UserToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (User) TableName() string {
	return "identity_users"
}

// NewUser creates a user with fresh identifiers and stamps
func NewUser(userName, email string) (*User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "User name cannot be empty")
	}
	u := &User{
		ID:               NewID(),
		UserName:         userName,
		Email:            strings.TrimSpace(email),
		SecurityStamp:    NewStamp(),
		ConcurrencyStamp: NewStamp(),
		LockoutEnabled:   true,
	}
	u.normalize()
	return u, nil
}

// BeforeSave keeps the normalized columns in sync and rotates the
// concurrency stamp on every write.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	if u.SecurityStamp == "" {
		u.SecurityStamp = NewStamp()
	}
	u.normalize()
	u.ConcurrencyStamp = NewStamp()
	return nil
}

// ConcurrencyToken returns the stamp checked by optimistic updates
func (u *User) ConcurrencyToken() string {
	return u.ConcurrencyStamp
}

// ConcurrencyTokenColumn names the column holding the concurrency stamp
func (u *User) ConcurrencyTokenColumn() string {
	return "concurrency_stamp"
}

// IsLockedOut reports whether the lockout window is still open at now
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnabled && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

func (u *User) normalize() {
	u.NormalizedUserName = Normalize(u.UserName)
	u.NormalizedEmail = Normalize(u.Email)
}

// UserClaim is a claim attached directly to a user
type UserClaim struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"size:450;not null;index:idx_identity_user_claims_user_id"`
	ClaimType  string `gorm:"type:text"`
	ClaimValue string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (UserClaim) TableName() string {
	return "identity_user_claims"
}

// UserLogin links a user to an external login provider
type UserLogin struct {
	LoginProvider       string `gorm:"primaryKey;size:450"`
	ProviderKey         string `gorm:"primaryKey;size:450"`
	ProviderDisplayName string
	UserID              string `gorm:"size:450;not null;index:idx_identity_user_logins_user_id"`
}

// TableName returns the table name for GORM
func (UserLogin) TableName() string {
	return "identity_user_logins"
}

// UserToken stores an authentication token issued by a login provider
type UserToken struct {
	UserID        string `gorm:"primaryKey;size:450"`
	LoginProvider string `gorm:"primaryKey;size:450"`
	Name          string `gorm:"primaryKey;size:450"`
	Value         string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (UserToken) TableName() string {
	return "identity_user_tokens"
}
