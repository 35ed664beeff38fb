package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain/ledger"
)

const (
	stockMovementsTable = "stock_movements"
	productsTable       = "products"
)

var movementColumns = []string{
	"id", "product_id", "type", "quantity",
	"previous_stock", "new_stock",
	"unit_cost", "total_value",
	"reference", "notes", "user_id", "created_at",
}

// Compile-time check.
var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new stock ledger repository.
func NewLedgerRepo(txm *TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func movementValues(m *entity.StockMovement) []any {
	return []any{
		m.ID, m.ProductID, m.Type, m.Quantity,
		m.PreviousStock, m.NewStock,
		m.UnitCost, m.TotalValue,
		m.Reference, m.Notes, m.UserID, m.CreatedAt,
	}
}

// CreateMovement appends a single ledger row.
func (r *LedgerRepo) CreateMovement(ctx context.Context, m *entity.StockMovement) error {
	sql, args, err := r.builder.Insert(stockMovementsTable).
		Columns(movementColumns...).
		Values(movementValues(m)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// GetMovementByID retrieves one ledger row.
func (r *LedgerRepo) GetMovementByID(ctx context.Context, movementID id.ID) (*entity.StockMovement, error) {
	sql, args, err := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"id": movementID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m entity.StockMovement
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock movement", movementID)
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return &m, nil
}

// GetMovementsByReference retrieves movements recorded under a reference.
func (r *LedgerRepo) GetMovementsByReference(ctx context.Context, reference string) ([]entity.StockMovement, error) {
	sql, args, err := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"reference": reference}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := []entity.StockMovement{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

func (r *LedgerRepo) movementsQuery(filter ledger.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).From(stockMovementsTable)
	return applyMovementFilter(q, filter)
}

func applyMovementFilter(q squirrel.SelectBuilder, filter ledger.MovementFilter) squirrel.SelectBuilder {
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": filter.Reference})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}
	return q
}

// ListMovements returns movement history, newest first.
func (r *LedgerRepo) ListMovements(ctx context.Context, filter ledger.MovementFilter) ([]entity.StockMovement, error) {
	q := r.movementsQuery(filter).OrderBy("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	// Empty history is a valid answer, never an error
	movements := []entity.StockMovement{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// CountMovements returns the total row count for a filter.
func (r *LedgerRepo) CountMovements(ctx context.Context, filter ledger.MovementFilter) (int64, error) {
	q := applyMovementFilter(r.builder.Select("COUNT(*)").From(stockMovementsTable), filter)

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count movements: %w", err)
	}
	return count, nil
}

// GetProductForUpdate locks the product row for the rest of the transaction.
func (r *LedgerRepo) GetProductForUpdate(ctx context.Context, productID id.ID) (*entity.ProductRef, error) {
	sql, args, err := r.builder.Select(
		"id", "sku", "name", "cost", "stock_quantity", "min_stock_level", "is_active",
	).
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p entity.ProductRef
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID)
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}
	return &p, nil
}

// UpdateQuantity performs the guarded compare-and-set on stock_quantity.
func (r *LedgerRepo) UpdateQuantity(ctx context.Context, productID id.ID, fromQty, toQty int64) (int64, error) {
	sql, args, err := r.builder.Update(productsTable).
		Set("stock_quantity", toQty).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": productID}).
		Where(squirrel.Eq{"stock_quantity": fromQty}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("update quantity: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetQuantity returns the current on-hand quantity without locking.
func (r *LedgerRepo) GetQuantity(ctx context.Context, productID id.ID) (int64, error) {
	sql, args, err := r.builder.Select("stock_quantity").
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var qty int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.NewNotFound("product", productID)
		}
		return 0, fmt.Errorf("get quantity: %w", err)
	}
	return qty, nil
}
