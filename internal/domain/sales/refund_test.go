package sales

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// commitTwoLineSale persists the sale from the refund scenarios: subtotal
// 100, tax 8, item A (qty 2, price 30) and item B (qty 1, price 40).
func commitTwoLineSale(t *testing.T, f *fixture, customerID *id.ID) (*entity.Sale, id.ID, id.ID) {
	t.Helper()

	productA := f.ledgerRepo.addProduct(10, types.MustMoney("10.00"))
	productB := f.ledgerRepo.addProduct(10, types.MustMoney("15.00"))

	sale, err := f.sales.CommitSale(context.Background(), CommitSaleInput{
		Items: []entity.SaleItem{
			saleItem(productA, 2, "30.00"),
			saleItem(productB, 1, "40.00"),
		},
		SellerID:    "seller-1",
		CustomerID:  customerID,
		Subtotal:    types.MustMoney("100.00"),
		TaxAmount:   types.MustMoney("8.00"),
		TotalAmount: types.MustMoney("108.00"),
		AmountPaid:  types.MustMoney("108.00"),
	})
	require.NoError(t, err)
	return sale, productA, productB
}

func TestCommitRefund_PartialWithProportionalTax(t *testing.T) {
	f := newFixture()
	sale, productA, _ := commitTwoLineSale(t, f, nil)
	ctx := context.Background()

	result, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 1}},
		Reason:         "customer changed mind",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)

	refund := result.Refund
	assert.True(t, refund.Subtotal.Equal(types.MustMoney("-30.00")), "subtotal %s", refund.Subtotal)
	assert.True(t, refund.TaxAmount.Equal(types.MustMoney("-2.40")), "tax %s", refund.TaxAmount)
	assert.True(t, refund.TotalAmount.Equal(types.MustMoney("-32.40")), "total %s", refund.TotalAmount)
	assert.Equal(t, entity.SaleStatusPartiallyRefunded, result.Original.Status)

	require.Len(t, refund.Payments, 1)
	assert.Equal(t, entity.PaymentRefund, refund.Payments[0].Method)
	assert.True(t, refund.Payments[0].Amount.Equal(types.MustMoney("-32.40")))

	// Stock returned: A sold 2 then refunded 1, net 9 on hand
	qty, _ := f.ledgerRepo.GetQuantity(ctx, productA)
	assert.Equal(t, int64(9), qty)

	// Refund has its own prefix
	assert.Contains(t, refund.ReceiptNumber, "REF-")
}

func TestCommitRefund_CumulativeFullRefund(t *testing.T) {
	f := newFixture()
	sale, productA, productB := commitTwoLineSale(t, f, nil)
	ctx := context.Background()

	_, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 1}},
		Reason:         "first partial",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)

	// Second refund completes the sale: remaining 1 of A plus the 1 of B
	result, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items: []RefundLine{
			{ProductID: productA, Quantity: 1},
			{ProductID: productB, Quantity: 1},
		},
		Reason:      "remainder",
		ProcessedBy: "manager-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SaleStatusRefunded, result.Original.Status)

	// All stock back on hand
	qtyA, _ := f.ledgerRepo.GetQuantity(ctx, productA)
	qtyB, _ := f.ledgerRepo.GetQuantity(ctx, productB)
	assert.Equal(t, int64(10), qtyA)
	assert.Equal(t, int64(10), qtyB)
}

func TestCommitRefund_AlreadyRefunded(t *testing.T) {
	f := newFixture()
	sale, productA, productB := commitTwoLineSale(t, f, nil)
	ctx := context.Background()

	_, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items: []RefundLine{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 1},
		},
		Reason:      "full refund",
		ProcessedBy: "manager-1",
	})
	require.NoError(t, err)

	_, err = f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 1}},
		Reason:         "again",
		ProcessedBy:    "manager-1",
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAlreadyRefunded, appErr.Code)
}

func TestCommitRefund_OverRefundRejected(t *testing.T) {
	f := newFixture()
	sale, productA, _ := commitTwoLineSale(t, f, nil)
	ctx := context.Background()

	// More than the original line
	_, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 3}},
		Reason:         "too much",
		ProcessedBy:    "manager-1",
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidRefundQuantity, appErr.Code)

	// Cumulative bound across calls: refund 1, then try 2 more
	_, err = f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 1}},
		Reason:         "first",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)

	_, err = f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 2}},
		Reason:         "cumulative overflow",
		ProcessedBy:    "manager-1",
	})
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidRefundQuantity, appErr.Code)
	assert.Equal(t, int64(1), appErr.Details["refundable"])
}

func TestCommitRefund_UnknownProductRejected(t *testing.T) {
	f := newFixture()
	sale, _, _ := commitTwoLineSale(t, f, nil)
	stranger := f.ledgerRepo.addProduct(5, types.MustMoney("1.00"))

	_, err := f.refunds.CommitRefund(context.Background(), CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: stranger, Quantity: 1}},
		Reason:         "not in sale",
		ProcessedBy:    "manager-1",
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidRefundQuantity, appErr.Code)
}

func TestCommitRefund_SaleNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.refunds.CommitRefund(context.Background(), CommitRefundInput{
		OriginalSaleID: id.New(),
		Items:          []RefundLine{{ProductID: id.New(), Quantity: 1}},
		Reason:         "missing",
		ProcessedBy:    "manager-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCommitRefund_ZeroSubtotalGuard(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("1.00"))
	ctx := context.Background()

	// A giveaway sale: price zero, subtotal zero
	sale, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items:       []entity.SaleItem{saleItem(productID, 1, "0.00")},
		SellerID:    "seller-1",
		Subtotal:    types.ZeroMoney(),
		TotalAmount: types.ZeroMoney(),
	})
	require.NoError(t, err)

	result, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productID, Quantity: 1}},
		Reason:         "returned giveaway",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Refund.TaxAmount.IsZero())
	assert.True(t, result.Refund.TotalAmount.IsZero())
}

func TestCommitRefund_DecrementsCustomerStats(t *testing.T) {
	f := newFixture()
	customerID := f.customerRepo.addCustomer()
	sale, productA, _ := commitTwoLineSale(t, f, &customerID)
	ctx := context.Background()

	before := f.customerRepo.customers[customerID]
	require.True(t, before.TotalSpent.Equal(types.MustMoney("108.00")))
	require.Equal(t, int64(10), before.LoyaltyPoints)

	_, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 1}},
		Reason:         "partial",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)

	after := f.customerRepo.customers[customerID]
	assert.True(t, after.TotalSpent.Equal(types.MustMoney("75.60")), "total spent %s", after.TotalSpent)
	assert.Equal(t, int64(1), after.PurchaseCount)
	assert.Equal(t, int64(7), after.LoyaltyPoints) // minus floor(32.40 / 10)
}

func TestCommitRefund_RefundOfRefundRejected(t *testing.T) {
	f := newFixture()
	sale, productA, _ := commitTwoLineSale(t, f, nil)
	ctx := context.Background()

	result, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 1}},
		Reason:         "partial",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)

	_, err = f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: result.Refund.ID,
		Items:          []RefundLine{{ProductID: productA, Quantity: 1}},
		Reason:         "refund the refund",
		ProcessedBy:    "manager-1",
	})
	require.Error(t, err)
}

func TestCommitRefund_ProductOnMultipleLines(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("4.00"))
	ctx := context.Background()

	// The same product rung up twice: two lines of 1 x 10.00
	sale, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items: []entity.SaleItem{
			saleItem(productID, 1, "10.00"),
			saleItem(productID, 1, "10.00"),
		},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("20.00"),
		TotalAmount: types.MustMoney("20.00"),
		AmountPaid:  types.MustMoney("20.00"),
	})
	require.NoError(t, err)

	// One unit back is worth the full 10.00, not a share of one line
	result, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productID, Quantity: 1}},
		Reason:         "one of two",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Refund.Subtotal.Equal(types.MustMoney("-10.00")),
		"subtotal %s", result.Refund.Subtotal)
	assert.Equal(t, entity.SaleStatusPartiallyRefunded, result.Original.Status)

	// The remaining unit completes the refund
	result, err = f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productID, Quantity: 1}},
		Reason:         "the other one",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Refund.Subtotal.Equal(types.MustMoney("-10.00")),
		"subtotal %s", result.Refund.Subtotal)
	assert.Equal(t, entity.SaleStatusRefunded, result.Original.Status)

	qty, _ := f.ledgerRepo.GetQuantity(ctx, productID)
	assert.Equal(t, int64(10), qty)
}

func TestCommitRefund_PercentageDiscountProportional(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("5.00"))
	ctx := context.Background()

	// 4 units at 25.00 with 10% line discount: line total 90.00
	item := entity.SaleItem{
		ProductID:    productID,
		Quantity:     4,
		UnitPrice:    types.MustMoney("25.00"),
		Discount:     types.MustMoney("10"),
		DiscountType: entity.DiscountPercentage,
	}

	sale, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items:       []entity.SaleItem{item},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("90.00"),
		TotalAmount: types.MustMoney("90.00"),
	})
	require.NoError(t, err)

	// Refund 2 of 4: half the discounted line, 45.00
	result, err := f.refunds.CommitRefund(ctx, CommitRefundInput{
		OriginalSaleID: sale.ID,
		Items:          []RefundLine{{ProductID: productID, Quantity: 2}},
		Reason:         "half back",
		ProcessedBy:    "manager-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Refund.Subtotal.Equal(types.MustMoney("-45.00")),
		"subtotal %s", result.Refund.Subtotal)
}
