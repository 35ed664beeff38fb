package ledger

import (
	"context"
	"fmt"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/tx"
	"posledger/internal/core/types"
	"posledger/internal/domain"
	"posledger/pkg/logger"
)

// Service is the sole writer of product stock quantities. Every change goes
// through Record: lock the product row, append the ledger entry, then move
// the cached quantity with a guarded update. Sales and refunds call Record
// inside their own transaction; adjustments and reversals open one here.
type Service struct {
	repo Repository
	txm  tx.Manager
}

// NewService creates a new stock ledger service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{
		repo: repo,
		txm:  txm,
	}
}

// RecordRequest describes one quantity change to apply.
type RecordRequest struct {
	ProductID id.ID
	Type      entity.MovementType
	// Quantity is signed: positive increases stock, negative decreases it.
	Quantity  int64
	UnitCost  types.Money
	Reference string
	Notes     string
	UserID    string
}

func (r RecordRequest) validate() error {
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if !entity.ValidMovementType(r.Type) {
		return apperror.NewValidation("invalid movement type").
			WithDetail("value", string(r.Type))
	}
	if r.Quantity == 0 {
		return apperror.NewValidation("quantity cannot be zero").
			WithDetail("field", "quantity")
	}
	if dir := r.Type.NormalDirection(); dir > 0 && r.Quantity < 0 || dir < 0 && r.Quantity > 0 {
		return apperror.NewValidation("quantity sign does not match movement type").
			WithDetail("type", string(r.Type)).
			WithDetail("quantity", r.Quantity)
	}
	return nil
}

// Record applies one quantity change. Must be called within a transaction;
// the product row lock and the guarded quantity update only make sense as
// part of the caller's unit of work.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*entity.StockMovement, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	product, err := s.repo.GetProductForUpdate(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("lock product %s: %w", req.ProductID, err)
	}

	newQty := product.StockQuantity + req.Quantity
	if newQty < 0 {
		return nil, apperror.NewInsufficientStock(
			req.ProductID.String(),
			-req.Quantity,
			product.StockQuantity,
		)
	}

	unitCost := req.UnitCost
	if unitCost.IsZero() {
		unitCost = product.Cost
	}

	movement := entity.NewStockMovement(
		req.ProductID,
		req.Type,
		req.Quantity,
		product.StockQuantity,
		newQty,
		unitCost,
		req.Reference,
		req.Notes,
		req.UserID,
	)

	if err := s.repo.CreateMovement(ctx, &movement); err != nil {
		return nil, fmt.Errorf("create movement: %w", err)
	}

	affected, err := s.repo.UpdateQuantity(ctx, req.ProductID, product.StockQuantity, newQty)
	if err != nil {
		return nil, fmt.Errorf("update quantity: %w", err)
	}
	if affected == 0 {
		// The row is locked, so a failed guard means the ledger and the
		// product disagree about the current quantity. Abort loudly.
		return nil, apperror.NewConsistencyFault(
			"movement recorded but quantity update did not apply",
			nil,
		).WithDetail("product_id", req.ProductID.String()).
			WithDetail("movement_id", movement.ID.String()).
			WithDetail("expected_from", product.StockQuantity)
	}

	if newQty <= product.MinStockLevel {
		logger.Warn(ctx, "product below minimum stock level",
			"product_id", req.ProductID,
			"sku", product.SKU,
			"quantity", newQty,
			"min_stock_level", product.MinStockLevel,
		)
	}

	return &movement, nil
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	ProductID id.ID
	// Quantity is the signed delta to apply.
	Quantity int64
	Reason   string
	UserID   string
}

// PostAdjustment applies a manual correction in its own transaction.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (*entity.StockMovement, error) {
	if input.Reason == "" {
		return nil, apperror.NewValidation("adjustment reason is required").
			WithDetail("field", "reason")
	}

	var movement *entity.StockMovement
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		movement, err = s.Record(ctx, RecordRequest{
			ProductID: input.ProductID,
			Type:      entity.MovementAdjustment,
			Quantity:  input.Quantity,
			Notes:     input.Reason,
			UserID:    input.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjustment posted",
		"product_id", input.ProductID,
		"quantity", input.Quantity,
		"movement_id", movement.ID,
	)
	return movement, nil
}

// ReverseMovement posts a compensating adjustment for an existing entry.
// The original entry stays untouched; the ledger is append-only.
func (s *Service) ReverseMovement(ctx context.Context, movementID id.ID, userID string) (*entity.StockMovement, error) {
	var reversal *entity.StockMovement
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		original, err := s.repo.GetMovementByID(ctx, movementID)
		if err != nil {
			return err
		}

		existing, err := s.repo.GetMovementsByReference(ctx, reversalReference(movementID))
		if err != nil {
			return fmt.Errorf("check existing reversals: %w", err)
		}
		if len(existing) > 0 {
			return apperror.NewConflict("movement is already reversed").
				WithDetail("movement_id", movementID.String()).
				WithDetail("reversal_id", existing[0].ID.String())
		}

		reversal, err = s.Record(ctx, RecordRequest{
			ProductID: original.ProductID,
			Type:      entity.MovementAdjustment,
			Quantity:  -original.Quantity,
			UnitCost:  original.UnitCost,
			Reference: reversalReference(movementID),
			Notes:     fmt.Sprintf("reversal of %s movement", original.Type),
			UserID:    userID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock movement reversed",
		"movement_id", movementID,
		"reversal_id", reversal.ID,
	)
	return reversal, nil
}

func reversalReference(movementID id.ID) string {
	return "reversal:" + movementID.String()
}

// ListMovements returns paginated movement history.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[entity.StockMovement], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	items, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return domain.ListResult[entity.StockMovement]{}, fmt.Errorf("list movements: %w", err)
	}

	total, err := s.repo.CountMovements(ctx, filter)
	if err != nil {
		return domain.ListResult[entity.StockMovement]{}, fmt.Errorf("count movements: %w", err)
	}

	return domain.ListResult[entity.StockMovement]{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// GetQuantity returns current on-hand quantity for a product.
func (s *Service) GetQuantity(ctx context.Context, productID id.ID) (int64, error) {
	return s.repo.GetQuantity(ctx, productID)
}

// StockRequirement is one line of an availability pre-check.
type StockRequirement struct {
	ProductID   id.ID
	RequiredQty int64
}

// CheckAndReserveStock validates availability with pessimistic locking.
// Callers must sort requirements by product id and run inside a transaction;
// the locks are held until that transaction ends.
func (s *Service) CheckAndReserveStock(ctx context.Context, items []StockRequirement) error {
	for _, item := range items {
		product, err := s.repo.GetProductForUpdate(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("lock product %s: %w", item.ProductID, err)
		}

		if !product.IsActive {
			return apperror.NewBusinessRule(apperror.CodeInactiveProduct, "product is not active").
				WithDetail("product_id", item.ProductID.String()).
				WithDetail("sku", product.SKU)
		}

		if product.StockQuantity < item.RequiredQty {
			return apperror.NewInsufficientStock(
				item.ProductID.String(),
				item.RequiredQty,
				product.StockQuantity,
			)
		}
	}

	return nil
}
