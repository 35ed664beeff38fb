package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/receipt"
	"posledger/internal/core/tx"
	"posledger/internal/core/types"
	"posledger/internal/domain/customers"
	"posledger/internal/domain/ledger"
	"posledger/pkg/logger"
)

// RefundService commits refunds against prior sales. A refund is stored as
// a sale-shaped record with negated amounts, its own REF receipt number and
// original_sale_id pointing back at the sale being reversed.
type RefundService struct {
	repo      Repository
	ledger    *ledger.Service
	customers *customers.Service
	receipts  receipt.Generator
	txm       tx.Manager
}

// NewRefundService creates a refund processing service.
func NewRefundService(
	repo Repository,
	ledgerSvc *ledger.Service,
	customerSvc *customers.Service,
	receipts receipt.Generator,
	txm tx.Manager,
) *RefundService {
	return &RefundService{
		repo:      repo,
		ledger:    ledgerSvc,
		customers: customerSvc,
		receipts:  receipts,
		txm:       txm,
	}
}

// RefundLine is one requested refund quantity.
type RefundLine struct {
	ProductID id.ID
	Quantity  int64
}

// CommitRefundInput is the refund request.
type CommitRefundInput struct {
	OriginalSaleID id.ID
	Items          []RefundLine
	Reason         string
	ProcessedBy    string
}

// RefundResult carries the refund record and the updated original sale.
type RefundResult struct {
	Refund   *entity.Sale
	Original *entity.Sale
}

// CommitRefund validates and commits a refund.
//
// The refundable quantity per line is bounded by the original quantity
// minus everything already refunded in prior operations, so repeated
// partial refunds can never over-refund a line. The status of the original
// sale flips to refunded only when the cumulative refunded quantities cover
// every original line in full.
func (s *RefundService) CommitRefund(ctx context.Context, input CommitRefundInput) (*RefundResult, error) {
	ctx, span := tracer.Start(ctx, "sales.CommitRefund",
		trace.WithAttributes(attribute.String("refund.original_sale_id", input.OriginalSaleID.String())),
	)
	defer span.End()

	if len(input.Items) == 0 {
		return nil, apperror.NewValidation("at least one refund line is required").
			WithDetail("field", "items")
	}
	if input.ProcessedBy == "" {
		return nil, apperror.NewValidation("processor is required").
			WithDetail("field", "processedBy")
	}
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			return nil, apperror.NewInvalidRefundQuantity(line.ProductID.String(), line.Quantity, 0)
		}
	}

	number, err := s.receipts.GetNextNumber(ctx, receipt.DefaultConfig(receipt.PrefixRefund), nil, time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate refund receipt number: %w", err)
	}

	var result *RefundResult
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		original, err := s.repo.GetByID(ctx, input.OriginalSaleID)
		if err != nil {
			return err
		}
		if original.IsRefund() {
			return apperror.NewValidation("cannot refund a refund record").
				WithDetail("sale_id", input.OriginalSaleID.String())
		}
		if original.Status == entity.SaleStatusRefunded {
			return apperror.NewAlreadyRefunded(input.OriginalSaleID.String())
		}

		originalItems, err := s.repo.GetItems(ctx, input.OriginalSaleID)
		if err != nil {
			return fmt.Errorf("get original items: %w", err)
		}
		alreadyRefunded, err := s.repo.GetRefundedQuantities(ctx, input.OriginalSaleID)
		if err != nil {
			return fmt.Errorf("get refunded quantities: %w", err)
		}

		plan, err := buildRefundPlan(original, originalItems, alreadyRefunded, input.Items)
		if err != nil {
			return err
		}

		refund := s.buildRefundRecord(original, plan, number, input)

		if err := s.repo.Create(ctx, refund); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}
		if err := s.repo.SaveItems(ctx, refund.ID, refund.Items); err != nil {
			return fmt.Errorf("save refund items: %w", err)
		}
		if err := s.repo.SavePayments(ctx, refund.ID, refund.Payments); err != nil {
			return fmt.Errorf("save refund payments: %w", err)
		}

		// Return stock to inventory
		for _, line := range plan.lines {
			if _, err := s.ledger.Record(ctx, ledger.RecordRequest{
				ProductID: line.productID,
				Type:      entity.MovementReturn,
				Quantity:  line.quantity,
				Reference: number,
				Notes:     "refund of " + original.ReceiptNumber,
				UserID:    input.ProcessedBy,
			}); err != nil {
				return err
			}
		}

		original.MarkRefunded(plan.fullyRefunded)
		if err := s.repo.UpdateStatus(ctx, original.ID, original.Status); err != nil {
			return fmt.Errorf("update sale status: %w", err)
		}

		if original.CustomerID != nil {
			if err := s.customers.ApplyRefund(ctx, *original.CustomerID, plan.totalRefund); err != nil {
				return err
			}
		}

		result = &RefundResult{Refund: refund, Original: original}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "refund committed",
		"refund_id", result.Refund.ID,
		"receipt_number", result.Refund.ReceiptNumber,
		"original_sale_id", input.OriginalSaleID,
		"total_refund", result.Refund.TotalAmount.Neg(),
		"status", result.Original.Status,
	)
	return result, nil
}

type refundPlanLine struct {
	productID    id.ID
	quantity     int64
	unitPrice    types.Money
	discount     types.Money
	discountType entity.DiscountType
	amount       types.Money
}

type refundPlan struct {
	lines         []refundPlanLine
	refundAmount  types.Money
	taxRefund     types.Money
	totalRefund   types.Money
	fullyRefunded bool
}

// productLines aggregates every sale line of one product. A product may
// appear on several lines; refunds are bounded and priced per product, so
// the net total sums LineTotal across all of its lines.
type productLines struct {
	first    entity.SaleItem
	quantity int64
	netTotal types.Money
}

// buildRefundPlan validates the requested lines against the original sale
// and computes the proportional amounts.
func buildRefundPlan(
	original *entity.Sale,
	originalItems []entity.SaleItem,
	alreadyRefunded map[id.ID]int64,
	requested []RefundLine,
) (*refundPlan, error) {
	byProduct := make(map[id.ID]*productLines)
	for _, item := range originalItems {
		pl, ok := byProduct[item.ProductID]
		if !ok {
			pl = &productLines{first: item, netTotal: decimal.Zero}
			byProduct[item.ProductID] = pl
		}
		pl.quantity += item.Quantity
		pl.netTotal = pl.netTotal.Add(item.LineTotal())
	}

	plan := &refundPlan{refundAmount: decimal.Zero}
	requestedQty := make(map[id.ID]int64)

	for _, line := range requested {
		pl, ok := byProduct[line.ProductID]
		if !ok {
			return nil, apperror.NewInvalidRefundQuantity(line.ProductID.String(), line.Quantity, 0).
				WithDetail("reason", "product not in original sale")
		}

		requestedQty[line.ProductID] += line.Quantity
		refundable := pl.quantity - alreadyRefunded[line.ProductID]
		if requestedQty[line.ProductID] > refundable {
			return nil, apperror.NewInvalidRefundQuantity(line.ProductID.String(), requestedQty[line.ProductID], refundable)
		}

		amount := refundLineAmount(pl, line.Quantity)

		plan.lines = append(plan.lines, refundPlanLine{
			productID:    line.ProductID,
			quantity:     line.Quantity,
			unitPrice:    pl.first.UnitPrice,
			discount:     pl.first.Discount,
			discountType: pl.first.DiscountType,
			amount:       amount,
		})
		plan.refundAmount = plan.refundAmount.Add(amount)
	}

	// Proportional tax; a zero subtotal means nothing to apportion
	if original.Subtotal.IsZero() {
		plan.taxRefund = decimal.Zero
	} else {
		plan.taxRefund = types.RoundMoney(
			plan.refundAmount.Div(original.Subtotal).Mul(original.TaxAmount),
		)
	}
	plan.refundAmount = types.RoundMoney(plan.refundAmount)
	plan.totalRefund = plan.refundAmount.Add(plan.taxRefund)

	// Full refund iff cumulative refunds now cover every original line
	plan.fullyRefunded = true
	for productID, pl := range byProduct {
		if alreadyRefunded[productID]+requestedQty[productID] < pl.quantity {
			plan.fullyRefunded = false
			break
		}
	}

	return plan, nil
}

// refundLineAmount apportions the product's net total (all of its lines,
// after line discounts) to the refunded share of its quantity.
func refundLineAmount(pl *productLines, refundQty int64) types.Money {
	if refundQty >= pl.quantity {
		return pl.netTotal
	}

	share := decimal.NewFromInt(refundQty).Div(decimal.NewFromInt(pl.quantity))
	return pl.netTotal.Mul(share)
}

// buildRefundRecord assembles the negative-amount sale-shaped record.
func (s *RefundService) buildRefundRecord(
	original *entity.Sale,
	plan *refundPlan,
	number string,
	input CommitRefundInput,
) *entity.Sale {
	refund := entity.NewSale(input.ProcessedBy, original.CustomerID)
	refund.ReceiptNumber = number
	refund.OriginalSaleID = &original.ID
	refund.Status = entity.SaleStatusCompleted
	refund.Notes = input.Reason
	refund.CreatedBy = input.ProcessedBy

	refund.Subtotal = plan.refundAmount.Neg()
	refund.TaxAmount = plan.taxRefund.Neg()
	refund.DiscountAmount = types.ZeroMoney()
	refund.TotalAmount = plan.totalRefund.Neg()
	refund.AmountPaid = plan.totalRefund.Neg()
	refund.ChangeAmount = types.ZeroMoney()

	for i, line := range plan.lines {
		refund.Items = append(refund.Items, entity.SaleItem{
			LineID:       id.New(),
			LineNo:       i + 1,
			ProductID:    line.productID,
			Quantity:     line.quantity,
			UnitPrice:    line.unitPrice,
			Discount:     line.discount,
			DiscountType: line.discountType,
			TotalPrice:   line.amount,
		})
	}

	refund.Payments = []entity.Payment{{
		LineID: id.New(),
		Method: entity.PaymentRefund,
		Amount: plan.totalRefund.Neg(),
		Status: "completed",
	}}

	return refund
}
