package customers

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain"
	"posledger/pkg/logger"
)

// Service maintains customer profiles and their purchase stats.
// ApplySale and ApplyRefund are called inside the sale transaction so the
// stats always agree with the committed sales.
type Service struct {
	repo Repository

	// earnRate is currency units spent per loyalty point
	earnRate int64
}

// NewService creates a customer service.
func NewService(repo Repository, earnRate int64) *Service {
	if earnRate <= 0 {
		earnRate = 10
	}
	return &Service{
		repo:     repo,
		earnRate: earnRate,
	}
}

// Create validates and inserts a new customer.
func (s *Service) Create(ctx context.Context, customer *entity.Customer) error {
	if err := customer.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return fmt.Errorf("create customer: %w", err)
	}

	logger.Info(ctx, "customer created", "id", customer.ID)
	return nil
}

// GetByID retrieves a customer.
func (s *Service) GetByID(ctx context.Context, customerID id.ID) (*entity.Customer, error) {
	return s.repo.GetByID(ctx, customerID)
}

// GetByPhone retrieves a customer by phone number.
func (s *Service) GetByPhone(ctx context.Context, phone string) (*entity.Customer, error) {
	return s.repo.GetByPhone(ctx, phone)
}

// Update saves profile fields.
func (s *Service) Update(ctx context.Context, customer *entity.Customer) error {
	if err := customer.Validate(ctx); err != nil {
		return err
	}
	customer.Touch()
	return s.repo.Update(ctx, customer)
}

// List retrieves customers with filtering and pagination.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Customer], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// PointsFor converts a sale total to earned loyalty points (floor).
func (s *Service) PointsFor(total types.Money) int64 {
	if total.IsNegative() || total.IsZero() {
		return 0
	}
	return total.Div(decimal.NewFromInt(s.earnRate)).IntPart()
}

// ApplySale records a completed sale against the customer's stats.
// Must be called within the sale transaction.
func (s *Service) ApplySale(ctx context.Context, customerID id.ID, total types.Money) error {
	points := s.PointsFor(total)
	if err := s.repo.ApplyStatsDelta(ctx, customerID, total, 1, points); err != nil {
		return fmt.Errorf("apply sale stats: %w", err)
	}
	return nil
}

// ApplyRefund rolls back stats for a refunded amount. refundTotal is the
// positive amount returned to the customer. The purchase count is kept;
// the visit still happened.
func (s *Service) ApplyRefund(ctx context.Context, customerID id.ID, refundTotal types.Money) error {
	points := s.PointsFor(refundTotal)
	if err := s.repo.ApplyStatsDelta(ctx, customerID, refundTotal.Neg(), 0, -points); err != nil {
		return fmt.Errorf("apply refund stats: %w", err)
	}
	return nil
}
