package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/receipt"
	"posledger/internal/core/tx"
	"posledger/internal/core/types"
	"posledger/internal/domain"
	"posledger/internal/domain/customers"
	"posledger/internal/domain/ledger"
	"posledger/pkg/logger"
)

var tracer = otel.Tracer("posledger/sales")

// totalsTolerance is the allowed drift between caller-supplied totals and
// totals re-derived from the items.
var totalsTolerance = decimal.NewFromFloat(0.01)

// Service commits sales. Each commit is one unit of work: the sale record,
// its ledger entries and the customer stat update land together or not at
// all.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	customers *customers.Service
	receipts  receipt.Generator
	txm       tx.ReadOnlyManager
}

// NewService creates a sale processing service.
func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	customerSvc *customers.Service,
	receipts receipt.Generator,
	txm tx.ReadOnlyManager,
) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		customers: customerSvc,
		receipts:  receipts,
		txm:       txm,
	}
}

// CommitSaleInput is the checkout request. Totals are computed by the
// caller (pricing rules live upstream) but are cross-checked against the
// items before committing.
type CommitSaleInput struct {
	Items      []entity.SaleItem
	Payments   []entity.Payment
	SellerID   string
	CustomerID *id.ID

	Subtotal       types.Money
	TaxAmount      types.Money
	DiscountAmount types.Money
	TotalAmount    types.Money
	AmountPaid     types.Money
	ChangeAmount   types.Money
}

// CommitSale validates and commits a sale.
//
// The stock checks and ledger writes run inside one transaction with the
// product rows locked in sorted id order, so concurrent sales of the same
// products serialize instead of deadlocking.
func (s *Service) CommitSale(ctx context.Context, input CommitSaleInput) (*entity.Sale, error) {
	ctx, span := tracer.Start(ctx, "sales.CommitSale",
		trace.WithAttributes(attribute.Int("sale.items", len(input.Items))),
	)
	defer span.End()

	sale := entity.NewSale(input.SellerID, input.CustomerID)
	sale.Items = normalizeItems(input.Items)
	sale.Payments = input.Payments
	sale.Subtotal = input.Subtotal
	sale.TaxAmount = input.TaxAmount
	sale.DiscountAmount = input.DiscountAmount
	sale.TotalAmount = input.TotalAmount
	sale.AmountPaid = input.AmountPaid
	sale.ChangeAmount = input.ChangeAmount
	sale.CreatedBy = input.SellerID

	if err := sale.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.checkTotals(sale); err != nil {
		return nil, err
	}

	number, err := s.receipts.GetNextNumber(ctx, receipt.DefaultConfig(receipt.PrefixSale), nil, time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate receipt number: %w", err)
	}
	sale.ReceiptNumber = number

	requirements := stockRequirements(sale.Items)

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		// Locks every product row until commit, in sorted order
		if err := s.ledger.CheckAndReserveStock(ctx, requirements); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		if err := s.repo.SaveItems(ctx, sale.ID, sale.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		if err := s.repo.SavePayments(ctx, sale.ID, sale.Payments); err != nil {
			return fmt.Errorf("save payments: %w", err)
		}

		for _, item := range sale.Items {
			if _, err := s.ledger.Record(ctx, ledger.RecordRequest{
				ProductID: item.ProductID,
				Type:      entity.MovementSale,
				Quantity:  -item.Quantity,
				Reference: sale.ReceiptNumber,
				UserID:    sale.SellerID,
			}); err != nil {
				return err
			}
		}

		if sale.CustomerID != nil {
			if err := s.customers.ApplySale(ctx, *sale.CustomerID, sale.TotalAmount); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale committed",
		"sale_id", sale.ID,
		"receipt_number", sale.ReceiptNumber,
		"items", len(sale.Items),
		"total", sale.TotalAmount,
	)
	return sale, nil
}

// checkTotals cross-checks caller-supplied amounts against the items.
func (s *Service) checkTotals(sale *entity.Sale) error {
	derived := sale.DerivedSubtotal()
	if !types.MoneyEqualWithin(derived, sale.Subtotal, totalsTolerance) {
		return apperror.NewValidation("subtotal does not match items").
			WithDetail("subtotal", sale.Subtotal.String()).
			WithDetail("derived", derived.String())
	}

	expectedTotal := sale.Subtotal.Add(sale.TaxAmount).Sub(sale.DiscountAmount)
	if !types.MoneyEqualWithin(expectedTotal, sale.TotalAmount, totalsTolerance) {
		return apperror.NewValidation("total does not match subtotal, tax and discount").
			WithDetail("total", sale.TotalAmount.String()).
			WithDetail("expected", expectedTotal.String())
	}

	return nil
}

// GetByID retrieves a sale with its lines and payments. The three reads
// run in a read-only transaction so the record, items and payments come
// from one snapshot.
func (s *Service) GetByID(ctx context.Context, saleID id.ID) (*entity.Sale, error) {
	var sale *entity.Sale
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if sale, err = s.repo.GetByID(ctx, saleID); err != nil {
			return err
		}
		if sale.Items, err = s.repo.GetItems(ctx, saleID); err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		if sale.Payments, err = s.repo.GetPayments(ctx, saleID); err != nil {
			return fmt.Errorf("get payments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// GetByReceiptNumber retrieves a sale by its receipt number.
func (s *Service) GetByReceiptNumber(ctx context.Context, receiptNumber string) (*entity.Sale, error) {
	sale, err := s.repo.GetByReceiptNumber(ctx, receiptNumber)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, sale.ID)
}

// List retrieves sales with filtering and pagination.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.Sale], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// normalizeItems assigns line ids and numbers and fills TotalPrice where
// the caller left it zero.
func normalizeItems(items []entity.SaleItem) []entity.SaleItem {
	out := make([]entity.SaleItem, len(items))
	for i, item := range items {
		if id.IsNil(item.LineID) {
			item.LineID = id.New()
		}
		item.LineNo = i + 1
		if item.TotalPrice.IsZero() {
			item.TotalPrice = item.LineTotal()
		}
		out[i] = item
	}
	return out
}

// stockRequirements aggregates quantities per product and sorts by product
// id so every transaction takes its row locks in the same order.
func stockRequirements(items []entity.SaleItem) []ledger.StockRequirement {
	byProduct := make(map[id.ID]int64)
	for _, item := range items {
		byProduct[item.ProductID] += item.Quantity
	}

	out := make([]ledger.StockRequirement, 0, len(byProduct))
	for productID, qty := range byProduct {
		out = append(out, ledger.StockRequirement{ProductID: productID, RequiredQty: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out
}
