// Package crm holds the customer-relationship entities persisted by the
// application: customers and their contacts, the sales pipeline, the product
// and service catalog, support cases, tasks and rewards.
package crm

import (
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

// Customer is the central CRM entity. CreatedDate and ModifiedDate are owned
// by the persistence layer: CreatedDate is written once on first insert and
// ModifiedDate on every insert or update.
type Customer struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:200;not null"`
	Email        string `gorm:"size:191;index"`
	Phone        string `gorm:"size:50"`
	Company      string `gorm:"size:200"`
	Notes        string `gorm:"type:text"`
	AddressID    *uint  `gorm:"index"`
	Address      *Address
	OwnerID      string `gorm:"size:191;index"` // identity user that owns the account
	CreatedDate  *time.Time
	ModifiedDate time.Time `gorm:"not null"`

	Contacts      []Contact
	Opportunities []Opportunity
	Sales         []Sale
	SupportCases  []SupportCase
	Rewards       []Reward
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a customer with the required fields set
func NewCustomer(name, email string) (*Customer, error) {
	if err := validateName(name, 200); err != nil {
		return nil, err
	}
	return &Customer{
		Name:  strings.TrimSpace(name),
		Email: normalizeEmail(email),
	}, nil
}

// Rename changes the customer's display name
func (c *Customer) Rename(name string) error {
	if err := validateName(name, 200); err != nil {
		return err
	}
	c.Name = strings.TrimSpace(name)
	return nil
}

// AssignOwner hands the account to an identity user
func (c *Customer) AssignOwner(userID string) {
	c.OwnerID = userID
}

// IsPersisted reports whether the customer has been stamped by a save
func (c *Customer) IsPersisted() bool {
	return c.CreatedDate != nil
}

// Address is a postal address shared by customers
type Address struct {
	ID         uint   `gorm:"primaryKey"`
	Street     string `gorm:"size:200"`
	City       string `gorm:"size:100"`
	State      string `gorm:"size:100"`
	PostalCode string `gorm:"size:20"`
	Country    string `gorm:"size:100"`
}

// TableName returns the table name for GORM
func (Address) TableName() string {
	return "addresses"
}

// String renders the address on one line, skipping empty parts
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.City, a.State, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Contact is a person reachable at a customer
type Contact struct {
	ID         uint   `gorm:"primaryKey"`
	CustomerID uint   `gorm:"not null;index"`
	FirstName  string `gorm:"size:100;not null"`
	LastName   string `gorm:"size:100"`
	Email      string `gorm:"size:191;index"`
	Phone      string `gorm:"size:50"`
	Position   string `gorm:"size:100"`
}

// TableName returns the table name for GORM
func (Contact) TableName() string {
	return "contacts"
}

// FullName joins first and last name
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func validateName(name string, max int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Name cannot be empty")
	}
	if len(name) > max {
		return shared.NewDomainError("INVALID_NAME", "Name is too long")
	}
	return nil
}
