// Package sales provides sale and refund transaction processing.
package sales

import (
	"context"
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain"
)

// Repository defines storage operations for sales and refunds.
// Refund records share the sales table; they carry original_sale_id and
// negated amounts.
type Repository interface {
	// Create inserts the sale header
	Create(ctx context.Context, sale *entity.Sale) error

	// SaveItems inserts the sale lines
	SaveItems(ctx context.Context, saleID id.ID, items []entity.SaleItem) error

	// SavePayments inserts the payment lines
	SavePayments(ctx context.Context, saleID id.ID, payments []entity.Payment) error

	// GetByID retrieves the sale header
	GetByID(ctx context.Context, saleID id.ID) (*entity.Sale, error)

	// GetByReceiptNumber retrieves the sale header by receipt number
	GetByReceiptNumber(ctx context.Context, receiptNumber string) (*entity.Sale, error)

	// GetItems retrieves the sale lines
	GetItems(ctx context.Context, saleID id.ID) ([]entity.SaleItem, error)

	// GetPayments retrieves the payment lines
	GetPayments(ctx context.Context, saleID id.ID) ([]entity.Payment, error)

	// GetRefundedQuantities sums refunded quantity per product across all
	// refund records pointing at the sale. Used to bound further refunds.
	GetRefundedQuantities(ctx context.Context, originalSaleID id.ID) (map[id.ID]int64, error)

	// UpdateStatus moves the sale's lifecycle status
	UpdateStatus(ctx context.Context, saleID id.ID, status entity.SaleStatus) error

	// List retrieves sales with filtering and pagination
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.Sale], error)
}

// ListFilter for sale queries.
type ListFilter struct {
	domain.ListFilter

	SellerID      string
	CustomerID    *id.ID
	Status        *entity.SaleStatus
	RefundsOnly   bool
	ExcludeRefund bool
	FromDate      *time.Time
	ToDate        *time.Time
}
