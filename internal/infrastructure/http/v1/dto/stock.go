package dto

import (
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/types"
)

// --- Request DTOs ---

// AdjustmentRequest is a manual signed stock correction.
type AdjustmentRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

// --- Response DTOs ---

// StockMovementResponse represents a ledger entry in API responses.
type StockMovementResponse struct {
	ID            string      `json:"id"`
	ProductID     string      `json:"productId"`
	Type          string      `json:"type"`
	Quantity      int64       `json:"quantity"`
	PreviousStock int64       `json:"previousStock"`
	NewStock      int64       `json:"newStock"`
	UnitCost      types.Money `json:"unitCost"`
	TotalValue    types.Money `json:"totalValue"`
	Reference     string      `json:"reference,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	UserID        string      `json:"userId,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// FromStockMovement converts entity to response DTO.
func FromStockMovement(m entity.StockMovement) StockMovementResponse {
	return StockMovementResponse{
		ID:            m.ID.String(),
		ProductID:     m.ProductID.String(),
		Type:          string(m.Type),
		Quantity:      m.Quantity,
		PreviousStock: m.PreviousStock,
		NewStock:      m.NewStock,
		UnitCost:      m.UnitCost,
		TotalValue:    m.TotalValue,
		Reference:     m.Reference,
		Notes:         m.Notes,
		UserID:        m.UserID,
		CreatedAt:     m.CreatedAt,
	}
}

// StockMovementListResponse represents a page of ledger entries.
type StockMovementListResponse struct {
	Items      []StockMovementResponse `json:"items"`
	TotalCount int64                   `json:"totalCount"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
}

// AvailabilityResponse reports on-hand quantity for a product.
type AvailabilityResponse struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}
