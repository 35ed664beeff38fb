// Package ledger provides the append-only stock movement ledger.
package ledger

import (
	"context"
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
)

// Repository defines storage operations for the stock ledger.
//
// The ledger owns products.stock_quantity: UpdateQuantity is the only write
// path for that column anywhere in the system.
type Repository interface {
	// Movement operations

	// CreateMovement appends a single movement row. Sale posting records
	// per item through Service.Record so each line carries its own
	// before/after quantities.
	CreateMovement(ctx context.Context, m *entity.StockMovement) error

	// GetMovementByID retrieves one movement
	GetMovementByID(ctx context.Context, movementID id.ID) (*entity.StockMovement, error)

	// GetMovementsByReference retrieves movements recorded under a reference
	// (e.g. a receipt number)
	GetMovementsByReference(ctx context.Context, reference string) ([]entity.StockMovement, error)

	// ListMovements returns movement history
	ListMovements(ctx context.Context, filter MovementFilter) ([]entity.StockMovement, error)

	// CountMovements returns the total for the same filter (for paging)
	CountMovements(ctx context.Context, filter MovementFilter) (int64, error)

	// Product quantity operations

	// GetProductForUpdate returns the product row with a FOR UPDATE lock
	GetProductForUpdate(ctx context.Context, productID id.ID) (*entity.ProductRef, error)

	// UpdateQuantity performs a guarded compare-and-set on stock_quantity.
	// Returns the number of rows affected; 0 means the guard failed because
	// the quantity changed underneath us.
	UpdateQuantity(ctx context.Context, productID id.ID, fromQty, toQty int64) (int64, error)

	// GetQuantity returns the current on-hand quantity without locking
	GetQuantity(ctx context.Context, productID id.ID) (int64, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	ProductID *id.ID
	Type      *entity.MovementType
	Reference string
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}
