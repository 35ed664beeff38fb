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
	"posledger/internal/core/types"
	"posledger/internal/domain"
	"posledger/internal/domain/customers"
)

const customersTable = "customers"

var customerColumns = []string{
	"id", "version", "name", "phone", "email",
	"total_spent", "purchase_count", "loyalty_points",
	"created_at", "updated_at",
}

// Compile-time check.
var _ customers.Repository = (*CustomerRepo)(nil)

// CustomerRepo implements customers.Repository.
type CustomerRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewCustomerRepo creates a new customer repository.
func NewCustomerRepo(txm *TxManager) *CustomerRepo {
	return &CustomerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a customer.
func (r *CustomerRepo) Create(ctx context.Context, c *entity.Customer) error {
	sql, args, err := r.builder.Insert(customersTable).
		Columns(customerColumns...).
		Values(
			c.ID, c.Version, c.Name, c.Phone, c.Email,
			c.TotalSpent, c.PurchaseCount, c.LoyaltyPoints,
			c.CreatedAt, c.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("customer", "phone", c.Phone)
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// GetByID retrieves a customer by id.
func (r *CustomerRepo) GetByID(ctx context.Context, customerID id.ID) (*entity.Customer, error) {
	return r.getBy(ctx, squirrel.Eq{"id": customerID}, customerID)
}

// GetByPhone retrieves a customer by phone number.
func (r *CustomerRepo) GetByPhone(ctx context.Context, phone string) (*entity.Customer, error) {
	return r.getBy(ctx, squirrel.Eq{"phone": phone}, phone)
}

func (r *CustomerRepo) getBy(ctx context.Context, cond squirrel.Eq, key any) (*entity.Customer, error) {
	sql, args, err := r.builder.Select(customerColumns...).
		From(customersTable).
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c entity.Customer
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("customer", key)
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// Update saves profile fields. Stats are excluded; they move only through
// ApplyStatsDelta.
func (r *CustomerRepo) Update(ctx context.Context, c *entity.Customer) error {
	sql, args, err := r.builder.Update(customersTable).
		Set("version", c.Version).
		Set("name", c.Name).
		Set("phone", c.Phone).
		Set("email", c.Email).
		Set("updated_at", c.UpdatedAt).
		Where(squirrel.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("customer", c.ID)
	}
	return nil
}

// ApplyStatsDelta shifts cumulative stats in a single UPDATE, so concurrent
// sales never lose increments.
func (r *CustomerRepo) ApplyStatsDelta(ctx context.Context, customerID id.ID, amount types.Money, purchases, points int64) error {
	sql, args, err := r.builder.Update(customersTable).
		Set("total_spent", squirrel.Expr("total_spent + ?", amount)).
		Set("purchase_count", squirrel.Expr("purchase_count + ?", purchases)).
		Set("loyalty_points", squirrel.Expr("GREATEST(loyalty_points + ?, 0)", points)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": customerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("apply stats delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("customer", customerID)
	}
	return nil
}

// List retrieves customers with filtering and pagination.
func (r *CustomerRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Customer], error) {
	var result domain.ListResult[*entity.Customer]

	apply := func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.Search != "" {
			pattern := "%" + strings.ToLower(filter.Search) + "%"
			q = q.Where(squirrel.Or{
				squirrel.Like{"LOWER(name)": pattern},
				squirrel.Like{"phone": pattern},
			})
		}
		return q
	}

	q := apply(r.builder.Select(customerColumns...).From(customersTable)).
		OrderBy(orderClause(filter.OrderBy, "name"))
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

	items := []*entity.Customer{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return result, fmt.Errorf("select customers: %w", err)
	}

	sql, args, err = apply(r.builder.Select("COUNT(*)").From(customersTable)).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	var total int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("count customers: %w", err)
	}

	result.Items = items
	result.TotalCount = total
	result.Limit = filter.Limit
	result.Offset = filter.Offset
	return result, nil
}
