package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain"
	"posledger/internal/domain/catalog"
)

var productColumns = []string{
	"id", "version", "sku", "barcode", "name", "category",
	"price", "cost", "stock_quantity", "min_stock_level",
	"is_active", "created_at", "updated_at",
}

// Compile-time check.
var _ catalog.Repository = (*CatalogRepo)(nil)

// CatalogRepo implements catalog.Repository.
// Updates here never touch stock_quantity; that column is written only by
// LedgerRepo.UpdateQuantity.
type CatalogRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewCatalogRepo creates a new product catalog repository.
func NewCatalogRepo(txm *TxManager) *CatalogRepo {
	return &CatalogRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a product.
func (r *CatalogRepo) Create(ctx context.Context, p *entity.Product) error {
	sql, args, err := r.builder.Insert(productsTable).
		Columns(productColumns...).
		Values(
			p.ID, p.Version, p.SKU, p.Barcode, p.Name, p.Category,
			p.Price, p.Cost, p.StockQuantity, p.MinStockLevel,
			p.IsActive, p.CreatedAt, p.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *CatalogRepo) getBy(ctx context.Context, cond squirrel.Eq, key any) (*entity.Product, error) {
	sql, args, err := r.builder.Select(productColumns...).
		From(productsTable).
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p entity.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", key)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// GetByID retrieves a product by id.
func (r *CatalogRepo) GetByID(ctx context.Context, productID id.ID) (*entity.Product, error) {
	return r.getBy(ctx, squirrel.Eq{"id": productID}, productID)
}

// GetBySKU retrieves a product by SKU.
func (r *CatalogRepo) GetBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	return r.getBy(ctx, squirrel.Eq{"sku": sku}, sku)
}

// GetByBarcode retrieves a product by barcode.
func (r *CatalogRepo) GetByBarcode(ctx context.Context, barcode string) (*entity.Product, error) {
	return r.getBy(ctx, squirrel.Eq{"barcode": barcode}, barcode)
}

// Update saves catalog fields with optimistic locking on version.
func (r *CatalogRepo) Update(ctx context.Context, p *entity.Product) error {
	sql, args, err := r.builder.Update(productsTable).
		Set("version", p.Version).
		Set("sku", p.SKU).
		Set("barcode", p.Barcode).
		Set("name", p.Name).
		Set("category", p.Category).
		Set("price", p.Price).
		Set("cost", p.Cost).
		Set("min_stock_level", p.MinStockLevel).
		Set("is_active", p.IsActive).
		Set("updated_at", p.UpdatedAt).
		Where(squirrel.Eq{"id": p.ID}).
		Where(squirrel.Lt{"version": p.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("product was modified by another operation").
			WithDetail("id", p.ID.String())
	}
	return nil
}

// List retrieves products with filtering and pagination.
func (r *CatalogRepo) List(ctx context.Context, filter catalog.ListFilter) (domain.ListResult[*entity.Product], error) {
	var result domain.ListResult[*entity.Product]

	base := r.builder.Select(productColumns...).From(productsTable)
	countQ := r.builder.Select("COUNT(*)").From(productsTable)

	apply := func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.Search != "" {
			pattern := "%" + strings.ToLower(filter.Search) + "%"
			q = q.Where(squirrel.Or{
				squirrel.Like{"LOWER(name)": pattern},
				squirrel.Like{"LOWER(sku)": pattern},
				squirrel.Like{"barcode": pattern},
			})
		}
		if filter.Category != "" {
			q = q.Where(squirrel.Eq{"category": filter.Category})
		}
		if filter.ActiveOnly {
			q = q.Where(squirrel.Eq{"is_active": true})
		}
		return q
	}

	base = apply(base).OrderBy(orderClause(filter.OrderBy, "name"))
	if filter.Limit > 0 {
		base = base.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		base = base.Offset(uint64(filter.Offset))
	}

	sql, args, err := base.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	products := []*entity.Product{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &products, sql, args...); err != nil {
		return result, fmt.Errorf("select products: %w", err)
	}

	sql, args, err = apply(countQ).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	var total int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("count products: %w", err)
	}

	result.Items = products
	result.TotalCount = total
	result.Limit = filter.Limit
	result.Offset = filter.Offset
	return result, nil
}

// ListLowStock returns active products at or below their minimum level.
func (r *CatalogRepo) ListLowStock(ctx context.Context) ([]*entity.Product, error) {
	sql, args, err := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Expr("stock_quantity <= min_stock_level")).
		OrderBy("stock_quantity - min_stock_level").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	products := []*entity.Product{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &products, sql, args...); err != nil {
		return nil, fmt.Errorf("select low stock: %w", err)
	}
	return products, nil
}
