package dto

import (
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/types"
)

// --- Request DTOs ---

// CreateProductRequest for creating catalog products.
// Stock quantity is deliberately absent: on-hand changes go through the
// stock ledger, never through catalog writes.
type CreateProductRequest struct {
	SKU           string      `json:"sku" binding:"required"`
	Barcode       string      `json:"barcode"`
	Name          string      `json:"name" binding:"required"`
	Category      string      `json:"category"`
	Price         types.Money `json:"price"`
	Cost          types.Money `json:"cost"`
	MinStockLevel int64       `json:"minStockLevel"`
}

// ToEntity converts the request into a new product.
func (r CreateProductRequest) ToEntity() *entity.Product {
	p := entity.NewProduct(r.SKU, r.Name)
	p.Barcode = r.Barcode
	p.Category = r.Category
	p.Price = r.Price
	p.Cost = r.Cost
	p.MinStockLevel = r.MinStockLevel
	return p
}

// UpdateProductRequest for updating catalog products.
type UpdateProductRequest struct {
	Barcode       *string      `json:"barcode"`
	Name          *string      `json:"name"`
	Category      *string      `json:"category"`
	Price         *types.Money `json:"price"`
	Cost          *types.Money `json:"cost"`
	MinStockLevel *int64       `json:"minStockLevel"`
	IsActive      *bool        `json:"isActive"`
	Version       int          `json:"version" binding:"required,min=1"`
}

// ApplyTo overlays the set fields onto an existing product.
func (r UpdateProductRequest) ApplyTo(p *entity.Product) {
	if r.Barcode != nil {
		p.Barcode = *r.Barcode
	}
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	if r.Cost != nil {
		p.Cost = *r.Cost
	}
	if r.MinStockLevel != nil {
		p.MinStockLevel = *r.MinStockLevel
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	p.SetVersion(r.Version)
}

// --- Response DTOs ---

// ProductResponse represents a product in API responses.
type ProductResponse struct {
	ID            string      `json:"id"`
	Version       int         `json:"version"`
	SKU           string      `json:"sku"`
	Barcode       string      `json:"barcode,omitempty"`
	Name          string      `json:"name"`
	Category      string      `json:"category,omitempty"`
	Price         types.Money `json:"price"`
	Cost          types.Money `json:"cost"`
	StockQuantity int64       `json:"stockQuantity"`
	MinStockLevel int64       `json:"minStockLevel"`
	IsActive      bool        `json:"isActive"`
	IsLowStock    bool        `json:"isLowStock"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// FromProduct converts entity to response DTO.
func FromProduct(p *entity.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID.String(),
		Version:       p.Version,
		SKU:           p.SKU,
		Barcode:       p.Barcode,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		Cost:          p.Cost,
		StockQuantity: p.StockQuantity,
		MinStockLevel: p.MinStockLevel,
		IsActive:      p.IsActive,
		IsLowStock:    p.IsLowStock(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
