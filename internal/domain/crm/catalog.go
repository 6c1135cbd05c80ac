package crm

import (
	"strings"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductCategory groups products
type ProductCategory struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;not null;uniqueIndex"`
	Description string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ProductCategory) TableName() string {
	return "product_categories"
}

// ServiceCategory groups services
type ServiceCategory struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;not null;uniqueIndex"`
	Description string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ServiceCategory) TableName() string {
	return "service_categories"
}

// Vendor supplies products
type Vendor struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:200;not null"`
	Email    string `gorm:"size:191"`
	Phone    string `gorm:"size:50"`
	Website  string `gorm:"size:255"`
	Products []Product
}

// TableName returns the table name for GORM
func (Vendor) TableName() string {
	return "vendors"
}

// Product is a sellable catalog item
type Product struct {
	ID         uint             `gorm:"primaryKey"`
	CategoryID uint             `gorm:"not null;index"`
	Category   *ProductCategory `gorm:"foreignKey:CategoryID"`
	VendorID   *uint            `gorm:"index"`
	Name       string           `gorm:"size:200;not null"`
	SKU        string           `gorm:"column:sku;size:191;not null;uniqueIndex"`
	Price      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a product in a category
func NewProduct(categoryID uint, name, sku string, price decimal.Decimal) (*Product, error) {
	if err := validateName(name, 200); err != nil {
		return nil, err
	}
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	return &Product{
		CategoryID: categoryID,
		Name:       strings.TrimSpace(name),
		SKU:        sku,
		Price:      price,
	}, nil
}

// Service is a billable service offering
type Service struct {
	ID         uint             `gorm:"primaryKey"`
	CategoryID uint             `gorm:"not null;index"`
	Category   *ServiceCategory `gorm:"foreignKey:CategoryID"`
	Name       string           `gorm:"size:200;not null"`
	Price      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Service) TableName() string {
	return "services"
}
