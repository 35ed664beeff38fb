package entity

import (
	"context"
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/types"
)

// Customer is a loyalty account. The cumulative stats (TotalSpent,
// PurchaseCount, LoyaltyPoints) are maintained atomically inside sale and
// refund transactions, never recomputed from history on the hot path.
type Customer struct {
	BaseEntity

	Name  string `db:"name" json:"name"`
	Phone string `db:"phone" json:"phone,omitempty"`
	Email string `db:"email" json:"email,omitempty"`

	TotalSpent    types.Money `db:"total_spent" json:"totalSpent"`
	PurchaseCount int64       `db:"purchase_count" json:"purchaseCount"`
	LoyaltyPoints int64       `db:"loyalty_points" json:"loyaltyPoints"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewCustomer creates a customer with generated id and timestamps.
func NewCustomer(name string) *Customer {
	now := time.Now().UTC()
	return &Customer{
		BaseEntity: NewBaseEntity(),
		Name:       name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate implements entity.Validatable.
func (c *Customer) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}
