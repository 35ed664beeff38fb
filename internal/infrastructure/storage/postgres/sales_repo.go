package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain"
	"posledger/internal/domain/sales"
)

const (
	salesTable        = "sales"
	saleItemsTable    = "sale_items"
	salePaymentsTable = "sale_payments"
)

var saleColumns = []string{
	"id", "version", "receipt_number", "customer_id", "seller_id",
	"original_sale_id",
	"subtotal", "tax_amount", "discount_amount", "total_amount",
	"amount_paid", "change_amount",
	"status", "notes", "sale_date",
	"created_at", "updated_at", "created_by", "updated_by",
}

// Compile-time check.
var _ sales.Repository = (*SalesRepo)(nil)

// SalesRepo implements sales.Repository. Refund records live in the same
// table with original_sale_id set and negated amounts.
type SalesRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewSalesRepo creates a new sales repository.
func NewSalesRepo(txm *TxManager) *SalesRepo {
	return &SalesRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the sale header.
func (r *SalesRepo) Create(ctx context.Context, s *entity.Sale) error {
	sql, args, err := r.builder.Insert(salesTable).
		Columns(saleColumns...).
		Values(
			s.ID, s.Version, s.ReceiptNumber, s.CustomerID, s.SellerID,
			s.OriginalSaleID,
			s.Subtotal, s.TaxAmount, s.DiscountAmount, s.TotalAmount,
			s.AmountPaid, s.ChangeAmount,
			s.Status, s.Notes, s.SaleDate,
			s.CreatedAt, s.UpdatedAt, s.CreatedBy, s.UpdatedBy,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("sale", "receipt_number", s.ReceiptNumber)
		}
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// SaveItems inserts the sale lines.
func (r *SalesRepo) SaveItems(ctx context.Context, saleID id.ID, items []entity.SaleItem) error {
	if len(items) == 0 {
		return nil
	}

	q := r.builder.Insert(saleItemsTable).Columns(
		"line_id", "sale_id", "line_no", "product_id", "quantity",
		"unit_price", "discount", "discount_type", "total_price",
	)
	for _, item := range items {
		q = q.Values(
			item.LineID, saleID, item.LineNo, item.ProductID, item.Quantity,
			item.UnitPrice, item.Discount, item.DiscountType, item.TotalPrice,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sale items: %w", err)
	}
	return nil
}

// SavePayments inserts the payment lines.
func (r *SalesRepo) SavePayments(ctx context.Context, saleID id.ID, payments []entity.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	q := r.builder.Insert(salePaymentsTable).Columns(
		"line_id", "sale_id", "method", "amount", "reference", "status",
	)
	for _, p := range payments {
		q = q.Values(p.LineID, saleID, p.Method, p.Amount, p.Reference, p.Status)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payments: %w", err)
	}
	return nil
}

// GetByID retrieves the sale header.
func (r *SalesRepo) GetByID(ctx context.Context, saleID id.ID) (*entity.Sale, error) {
	return r.getBy(ctx, squirrel.Eq{"id": saleID}, saleID)
}

// GetByReceiptNumber retrieves the sale header by receipt number.
func (r *SalesRepo) GetByReceiptNumber(ctx context.Context, receiptNumber string) (*entity.Sale, error) {
	return r.getBy(ctx, squirrel.Eq{"receipt_number": receiptNumber}, receiptNumber)
}

func (r *SalesRepo) getBy(ctx context.Context, cond squirrel.Eq, key any) (*entity.Sale, error) {
	sql, args, err := r.builder.Select(saleColumns...).
		From(salesTable).
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s entity.Sale
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", key)
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return &s, nil
}

// GetItems retrieves the sale lines in order.
func (r *SalesRepo) GetItems(ctx context.Context, saleID id.ID) ([]entity.SaleItem, error) {
	sql, args, err := r.builder.Select(
		"line_id", "line_no", "product_id", "quantity",
		"unit_price", "discount", "discount_type", "total_price",
	).
		From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := []entity.SaleItem{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select sale items: %w", err)
	}
	return items, nil
}

// GetPayments retrieves the payment lines.
func (r *SalesRepo) GetPayments(ctx context.Context, saleID id.ID) ([]entity.Payment, error) {
	sql, args, err := r.builder.Select(
		"line_id", "method", "amount", "reference", "status",
	).
		From(salePaymentsTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	payments := []entity.Payment{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	return payments, nil
}

// GetRefundedQuantities sums refunded quantity per product across all
// refund records pointing at the sale.
func (r *SalesRepo) GetRefundedQuantities(ctx context.Context, originalSaleID id.ID) (map[id.ID]int64, error) {
	sql, args, err := r.builder.Select("i.product_id", "SUM(i.quantity) AS quantity").
		From(saleItemsTable + " i").
		Join(salesTable + " s ON s.id = i.sale_id").
		Where(squirrel.Eq{"s.original_sale_id": originalSaleID}).
		GroupBy("i.product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select refunded quantities: %w", err)
	}
	defer rows.Close()

	out := make(map[id.ID]int64)
	for rows.Next() {
		var productID id.ID
		var qty int64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("scan refunded quantity: %w", err)
		}
		out[productID] = qty
	}
	return out, rows.Err()
}

// UpdateStatus moves the sale's lifecycle status.
func (r *SalesRepo) UpdateStatus(ctx context.Context, saleID id.ID, status entity.SaleStatus) error {
	sql, args, err := r.builder.Update(salesTable).
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": saleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sale", saleID)
	}
	return nil
}

// List retrieves sales with filtering and pagination, newest first.
func (r *SalesRepo) List(ctx context.Context, filter sales.ListFilter) (domain.ListResult[*entity.Sale], error) {
	var result domain.ListResult[*entity.Sale]

	apply := func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.SellerID != "" {
			q = q.Where(squirrel.Eq{"seller_id": filter.SellerID})
		}
		if filter.CustomerID != nil {
			q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
		}
		if filter.Status != nil {
			q = q.Where(squirrel.Eq{"status": *filter.Status})
		}
		if filter.RefundsOnly {
			q = q.Where("original_sale_id IS NOT NULL")
		}
		if filter.ExcludeRefund {
			q = q.Where("original_sale_id IS NULL")
		}
		if filter.FromDate != nil {
			q = q.Where(squirrel.GtOrEq{"sale_date": *filter.FromDate})
		}
		if filter.ToDate != nil {
			q = q.Where(squirrel.LtOrEq{"sale_date": *filter.ToDate})
		}
		return q
	}

	q := apply(r.builder.Select(saleColumns...).From(salesTable)).
		OrderBy(orderClause(filter.OrderBy, "sale_date DESC"))
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	items := []*entity.Sale{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return result, fmt.Errorf("select sales: %w", err)
	}

	sql, args, err = apply(r.builder.Select("COUNT(*)").From(salesTable)).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	var total int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("count sales: %w", err)
	}

	result.Items = items
	result.TotalCount = total
	result.Limit = filter.Limit
	result.Offset = filter.Offset
	return result, nil
}
