package entity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// SaleStatus is the lifecycle state of a sale record.
// Transitions are monotone: completed -> partially_refunded -> refunded.
type SaleStatus string

const (
	SaleStatusPending           SaleStatus = "pending"
	SaleStatusCompleted         SaleStatus = "completed"
	SaleStatusPartiallyRefunded SaleStatus = "partially_refunded"
	SaleStatusRefunded          SaleStatus = "refunded"
)

// DiscountType distinguishes percentage discounts from fixed amounts.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// PaymentMethod for a sale payment line.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
	PaymentRefund PaymentMethod = "refund"
)

// SaleItem is one line of a sale.
type SaleItem struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID `db:"product_id" json:"productId"`
	Quantity  int64 `db:"quantity" json:"quantity"`

	UnitPrice    types.Money  `db:"unit_price" json:"unitPrice"`
	Discount     types.Money  `db:"discount" json:"discount"`
	DiscountType DiscountType `db:"discount_type" json:"discountType"`
	TotalPrice   types.Money  `db:"total_price" json:"totalPrice"`
}

// LineTotal derives the item total from its pricing fields:
// unitPrice * quantity minus the discount (percentage of the gross, or a
// fixed amount for the whole line).
func (i SaleItem) LineTotal() types.Money {
	gross := i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
	switch i.DiscountType {
	case DiscountPercentage:
		return gross.Sub(gross.Mul(i.Discount).Div(decimal.NewFromInt(100)))
	case DiscountFixed:
		return gross.Sub(i.Discount)
	default:
		return gross
	}
}

// Payment records one tender against a sale.
type Payment struct {
	LineID    id.ID         `db:"line_id" json:"lineId"`
	Method    PaymentMethod `db:"method" json:"method"`
	Amount    types.Money   `db:"amount" json:"amount"`
	Reference string        `db:"reference" json:"reference,omitempty"`
	Status    string        `db:"status" json:"status"`
}

// Sale is a checkout transaction consuming stock. Refunds are stored as
// Sale-shaped records with negated amounts, their own REF receipt number
// and OriginalSaleID pointing at the sale being reversed.
type Sale struct {
	BaseDocument

	// ReceiptNumber is unique, date-scoped, human readable.
	ReceiptNumber string `db:"receipt_number" json:"receiptNumber"`

	CustomerID *id.ID `db:"customer_id" json:"customerId,omitempty"`
	SellerID   string `db:"seller_id" json:"sellerId"`

	// OriginalSaleID is set on refund records only.
	OriginalSaleID *id.ID `db:"original_sale_id" json:"originalSaleId,omitempty"`

	Subtotal       types.Money `db:"subtotal" json:"subtotal"`
	TaxAmount      types.Money `db:"tax_amount" json:"taxAmount"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	TotalAmount    types.Money `db:"total_amount" json:"totalAmount"`
	AmountPaid     types.Money `db:"amount_paid" json:"amountPaid"`
	ChangeAmount   types.Money `db:"change_amount" json:"changeAmount"`

	Status SaleStatus `db:"status" json:"status"`

	// Notes carries the refund reason on refund records.
	Notes string `db:"notes" json:"notes,omitempty"`

	SaleDate time.Time `db:"sale_date" json:"saleDate"`

	Items    []SaleItem `db:"-" json:"items"`
	Payments []Payment  `db:"-" json:"payments"`
}

// NewSale creates a sale shell with generated id and timestamps.
func NewSale(sellerID string, customerID *id.ID) *Sale {
	return &Sale{
		BaseDocument: NewBaseDocument(),
		SellerID:     sellerID,
		CustomerID:   customerID,
		Status:       SaleStatusCompleted,
		SaleDate:     time.Now().UTC(),
		Items:        make([]SaleItem, 0),
		Payments:     make([]Payment, 0),
	}
}

// IsRefund reports whether this record reverses another sale.
func (s *Sale) IsRefund() bool {
	return s.OriginalSaleID != nil
}

// DerivedSubtotal recomputes the subtotal from items.
func (s *Sale) DerivedSubtotal() types.Money {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(ctx context.Context) error {
	if s.SellerID == "" {
		return apperror.NewValidation("seller is required").
			WithDetail("field", "sellerId")
	}

	if len(s.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for i, item := range s.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if item.Quantity <= 0 {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if item.Discount.IsNegative() {
			return apperror.NewValidation("discount cannot be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		// An omitted type with no discount defaults to fixed, matching
		// what LineTotal assumes for the zero value
		if item.DiscountType == "" && item.Discount.IsZero() {
			s.Items[i].DiscountType = DiscountFixed
			continue
		}
		if item.DiscountType != DiscountPercentage && item.DiscountType != DiscountFixed {
			return apperror.NewValidation("invalid discount type").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1).
				WithDetail("value", string(item.DiscountType))
		}
	}

	return nil
}

// MarkRefunded transitions status toward the terminal refunded state.
// The transition is monotone: a fully refunded sale never goes back.
func (s *Sale) MarkRefunded(full bool) {
	if full {
		s.Status = SaleStatusRefunded
	} else if s.Status != SaleStatusRefunded {
		s.Status = SaleStatusPartiallyRefunded
	}
	s.Touch()
}
