package crm

import (
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OpportunityStage is the position of an opportunity in the sales pipeline
type OpportunityStage string

const (
	OpportunityStageProspecting   OpportunityStage = "prospecting"
	OpportunityStageQualification OpportunityStage = "qualification"
	OpportunityStageProposal      OpportunityStage = "proposal"
	OpportunityStageNegotiation   OpportunityStage = "negotiation"
	OpportunityStageClosedWon     OpportunityStage = "closed_won"
	OpportunityStageClosedLost    OpportunityStage = "closed_lost"
)

// IsValid returns true if the stage is known
func (s OpportunityStage) IsValid() bool {
	switch s {
	case OpportunityStageProspecting,
		OpportunityStageQualification,
		OpportunityStageProposal,
		OpportunityStageNegotiation,
		OpportunityStageClosedWon,
		OpportunityStageClosedLost:
		return true
	}
	return false
}

// IsClosed returns true for won or lost opportunities
func (s OpportunityStage) IsClosed() bool {
	return s == OpportunityStageClosedWon || s == OpportunityStageClosedLost
}

// Opportunity is a potential deal with a customer
type Opportunity struct {
	ID                uint             `gorm:"primaryKey"`
	CustomerID        uint             `gorm:"not null;index"`
	Title             string           `gorm:"size:200;not null"`
	Stage             OpportunityStage `gorm:"size:30;not null;default:'prospecting'"`
	EstimatedValue    decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	Probability       int              `gorm:"not null;default:0"`
	ExpectedCloseDate *time.Time
}

// TableName returns the table name for GORM
func (Opportunity) TableName() string {
	return "opportunities"
}

// MoveTo advances the opportunity to another stage. Closed opportunities
// cannot be reopened.
func (o *Opportunity) MoveTo(stage OpportunityStage) error {
	if !stage.IsValid() {
		return shared.NewDomainError("INVALID_STAGE", "Unknown opportunity stage")
	}
	if o.Stage.IsClosed() {
		return shared.ErrInvalidState
	}
	o.Stage = stage
	switch stage {
	case OpportunityStageClosedWon:
		o.Probability = 100
	case OpportunityStageClosedLost:
		o.Probability = 0
	}
	return nil
}

// WeightedValue is the estimated value scaled by the win probability
func (o Opportunity) WeightedValue() decimal.Decimal {
	return o.EstimatedValue.Mul(decimal.NewFromInt(int64(o.Probability))).Div(decimal.NewFromInt(100))
}

// LeadStatus tracks lead qualification
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusQualified    LeadStatus = "qualified"
	LeadStatusDisqualified LeadStatus = "disqualified"
	LeadStatusConverted    LeadStatus = "converted"
)

// IsValid returns true if the status is known
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusDisqualified, LeadStatusConverted:
		return true
	}
	return false
}

// Lead is an unqualified prospect
type Lead struct {
	ID                  uint       `gorm:"primaryKey"`
	Name                string     `gorm:"size:200;not null"`
	Email               string     `gorm:"size:191;index"`
	Phone               string     `gorm:"size:50"`
	Source              string     `gorm:"size:100"`
	Status              LeadStatus `gorm:"size:20;not null;default:'new'"`
	ConvertedCustomerID *uint      `gorm:"index"`
}

// TableName returns the table name for GORM
func (Lead) TableName() string {
	return "leads"
}

// Convert turns a qualified lead into a new customer. The lead keeps a
// pointer to the customer once the customer has an ID.
func (l *Lead) Convert() (*Customer, error) {
	if l.Status == LeadStatusConverted || l.Status == LeadStatusDisqualified {
		return nil, shared.ErrInvalidState
	}
	customer, err := NewCustomer(l.Name, l.Email)
	if err != nil {
		return nil, err
	}
	customer.Phone = l.Phone
	l.Status = LeadStatusConverted
	return customer, nil
}

// LinkCustomer records the customer a converted lead became
func (l *Lead) LinkCustomer(customerID uint) {
	l.ConvertedCustomerID = &customerID
}

// Sale records a sold product or service
type Sale struct {
	ID         uint            `gorm:"primaryKey"`
	CustomerID uint            `gorm:"not null;index"`
	ProductID  *uint           `gorm:"index"`
	ServiceID  *uint           `gorm:"index"`
	Quantity   int             `gorm:"not null;default:1"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SoldAt     time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (Sale) TableName() string {
	return "sales"
}

// NewSale builds a sale line and computes its total
func NewSale(customerID uint, quantity int, unitPrice decimal.Decimal, soldAt time.Time) (*Sale, error) {
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	return &Sale{
		CustomerID: customerID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		Total:      unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		SoldAt:     soldAt.UTC(),
	}, nil
}

// ForProduct points the sale at a catalog product
func (s *Sale) ForProduct(productID uint) *Sale {
	s.ProductID = &productID
	s.ServiceID = nil
	return s
}

// ForService points the sale at a catalog service
func (s *Sale) ForService(serviceID uint) *Sale {
	s.ServiceID = &serviceID
	s.ProductID = nil
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
