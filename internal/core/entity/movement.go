package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// MovementType classifies why a product's quantity changed.
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
	MovementTransfer   MovementType = "transfer"
	MovementDamage     MovementType = "damage"
	MovementExpired    MovementType = "expired"
)

// ValidMovementType reports whether t is a known movement type.
func ValidMovementType(t MovementType) bool {
	switch t {
	case MovementPurchase, MovementSale, MovementAdjustment,
		MovementReturn, MovementTransfer, MovementDamage, MovementExpired:
		return true
	}
	return false
}

// NormalDirection returns the expected sign for a movement type:
// +1 for types that normally increase stock, -1 for types that normally
// decrease it, 0 for adjustment (either sign allowed).
func (t MovementType) NormalDirection() int {
	switch t {
	case MovementPurchase, MovementReturn:
		return 1
	case MovementSale, MovementDamage, MovementExpired, MovementTransfer:
		return -1
	default:
		return 0
	}
}

// StockMovement is an immutable ledger entry recording one quantity change
// to one product. Movements are never edited in place; corrections are
// posted as new compensating movements.
type StockMovement struct {
	// ID is unique identifier for this ledger line (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	ProductID id.ID        `db:"product_id" json:"productId"`
	Type      MovementType `db:"type" json:"type"`

	// Quantity is signed: positive = stock increase, negative = decrease.
	Quantity int64 `db:"quantity" json:"quantity"`

	// PreviousStock and NewStock capture the balance around this entry.
	// Invariant: NewStock == PreviousStock + Quantity, NewStock >= 0.
	PreviousStock int64 `db:"previous_stock" json:"previousStock"`
	NewStock      int64 `db:"new_stock" json:"newStock"`

	UnitCost   types.Money `db:"unit_cost" json:"unitCost"`
	TotalValue types.Money `db:"total_value" json:"totalValue"`

	// Reference is a free-text correlation id, e.g. a receipt number or
	// the id of a movement being reversed.
	Reference string `db:"reference" json:"reference,omitempty"`
	Notes     string `db:"notes" json:"notes,omitempty"`

	// UserID is the actor who caused the movement.
	UserID string `db:"user_id" json:"userId"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a ledger entry for the given balance transition.
// TotalValue is derived as |quantity| * unitCost.
func NewStockMovement(
	productID id.ID,
	movementType MovementType,
	quantity, previousStock, newStock int64,
	unitCost types.Money,
	reference, notes, userID string,
) StockMovement {
	abs := quantity
	if abs < 0 {
		abs = -abs
	}
	return StockMovement{
		ID:            id.New(),
		ProductID:     productID,
		Type:          movementType,
		Quantity:      quantity,
		PreviousStock: previousStock,
		NewStock:      newStock,
		UnitCost:      unitCost,
		TotalValue:    unitCost.Mul(decimal.NewFromInt(abs)),
		Reference:     reference,
		Notes:         notes,
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
	}
}
