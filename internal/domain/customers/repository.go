// Package customers provides loyalty accounts and their purchase stats.
package customers

import (
	"context"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain"
)

// Repository defines storage operations for customers.
type Repository interface {
	// Create inserts a new customer
	Create(ctx context.Context, customer *entity.Customer) error

	// GetByID retrieves a customer by id
	GetByID(ctx context.Context, customerID id.ID) (*entity.Customer, error)

	// GetByPhone retrieves a customer by phone number
	GetByPhone(ctx context.Context, phone string) (*entity.Customer, error)

	// Update modifies profile fields (name, phone, email)
	Update(ctx context.Context, customer *entity.Customer) error

	// ApplyStatsDelta atomically shifts the cumulative stats:
	//   total_spent += amount, purchase_count += purchases, loyalty_points += points
	// It runs as a single UPDATE so concurrent sales never lose increments.
	ApplyStatsDelta(ctx context.Context, customerID id.ID, amount types.Money, purchases, points int64) error

	// List retrieves customers with filtering and pagination
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Customer], error)
}
