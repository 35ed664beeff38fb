package dto

import (
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/types"
)

// --- Request DTOs ---

// CreateCustomerRequest for creating loyalty accounts.
type CreateCustomerRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// ToEntity converts the request into a new customer.
func (r CreateCustomerRequest) ToEntity() *entity.Customer {
	c := entity.NewCustomer(r.Name)
	c.Phone = r.Phone
	c.Email = r.Email
	return c
}

// UpdateCustomerRequest for updating customer profile fields.
// Loyalty stats are maintained by sale and refund transactions only.
type UpdateCustomerRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

// ApplyTo overlays the set fields onto an existing customer.
func (r UpdateCustomerRequest) ApplyTo(c *entity.Customer) {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.Phone != nil {
		c.Phone = *r.Phone
	}
	if r.Email != nil {
		c.Email = *r.Email
	}
}

// --- Response DTOs ---

// CustomerResponse represents a customer in API responses.
type CustomerResponse struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone,omitempty"`
	Email         string      `json:"email,omitempty"`
	TotalSpent    types.Money `json:"totalSpent"`
	PurchaseCount int64       `json:"purchaseCount"`
	LoyaltyPoints int64       `json:"loyaltyPoints"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// FromCustomer converts entity to response DTO.
func FromCustomer(c *entity.Customer) CustomerResponse {
	return CustomerResponse{
		ID:            c.ID.String(),
		Name:          c.Name,
		Phone:         c.Phone,
		Email:         c.Email,
		TotalSpent:    c.TotalSpent,
		PurchaseCount: c.PurchaseCount,
		LoyaltyPoints: c.LoyaltyPoints,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
