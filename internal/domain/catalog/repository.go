// Package catalog provides the product catalog.
//
// The catalog never writes stock_quantity; that column belongs to the stock
// ledger. Product reads here may be served from cache and must not be used
// for stock decisions inside a transaction.
package catalog

import (
	"context"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain"
)

// Repository defines storage operations for products.
type Repository interface {
	// Create inserts a new product
	Create(ctx context.Context, product *entity.Product) error

	// GetByID retrieves a product by id
	GetByID(ctx context.Context, productID id.ID) (*entity.Product, error)

	// GetBySKU retrieves a product by its unique SKU
	GetBySKU(ctx context.Context, sku string) (*entity.Product, error)

	// GetByBarcode retrieves a product by barcode
	GetByBarcode(ctx context.Context, barcode string) (*entity.Product, error)

	// Update modifies catalog fields (never stock_quantity)
	Update(ctx context.Context, product *entity.Product) error

	// List retrieves products with filtering and pagination
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.Product], error)

	// ListLowStock returns active products at or below their minimum level
	ListLowStock(ctx context.Context) ([]*entity.Product, error)
}

// ListFilter for product queries.
type ListFilter struct {
	domain.ListFilter

	Category   string
	ActiveOnly bool
}
