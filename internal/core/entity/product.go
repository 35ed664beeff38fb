package entity

import (
	"context"
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// Product is the catalog record carrying the authoritative on-hand quantity.
// StockQuantity is written only through the stock ledger; every change has a
// matching StockMovement row.
type Product struct {
	BaseEntity

	SKU      string `db:"sku" json:"sku"`
	Barcode  string `db:"barcode" json:"barcode,omitempty"`
	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category,omitempty"`

	Price types.Money `db:"price" json:"price"`
	Cost  types.Money `db:"cost" json:"cost"`

	StockQuantity int64 `db:"stock_quantity" json:"stockQuantity"`
	MinStockLevel int64 `db:"min_stock_level" json:"minStockLevel"`

	IsActive bool `db:"is_active" json:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewProduct creates a product with generated id and timestamps.
func NewProduct(sku, name string) *Product {
	now := time.Now().UTC()
	return &Product{
		BaseEntity: NewBaseEntity(),
		SKU:        sku,
		Name:       name,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsLowStock reports whether on-hand quantity is at or below the threshold.
func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if p.SKU == "" {
		return apperror.NewValidation("sku is required").
			WithDetail("field", "sku")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("price cannot be negative").
			WithDetail("field", "price")
	}
	if p.MinStockLevel < 0 {
		return apperror.NewValidation("minimum stock level cannot be negative").
			WithDetail("field", "minStockLevel")
	}
	return nil
}

// ProductRef is the resolved, locked view of a product used inside a sale
// or refund transaction.
type ProductRef struct {
	ID            id.ID       `db:"id"`
	SKU           string      `db:"sku"`
	Name          string      `db:"name"`
	Cost          types.Money `db:"cost"`
	StockQuantity int64       `db:"stock_quantity"`
	MinStockLevel int64       `db:"min_stock_level"`
	IsActive      bool        `db:"is_active"`
}
