package sales

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/receipt"
	"posledger/internal/core/types"
	"posledger/internal/domain"
	"posledger/internal/domain/customers"
	"posledger/internal/domain/ledger"
)

// --- in-memory fakes ---

type memTxManager struct{}

func (memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (memTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memLedgerRepo struct {
	products  map[id.ID]*entity.ProductRef
	movements []entity.StockMovement
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{products: make(map[id.ID]*entity.ProductRef)}
}

func (m *memLedgerRepo) addProduct(qty int64, cost types.Money) id.ID {
	productID := id.New()
	m.products[productID] = &entity.ProductRef{
		ID:            productID,
		SKU:           "SKU-" + productID.String()[:8],
		Name:          "product",
		Cost:          cost,
		StockQuantity: qty,
		IsActive:      true,
	}
	return productID
}

func (m *memLedgerRepo) CreateMovement(ctx context.Context, mv *entity.StockMovement) error {
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *memLedgerRepo) GetMovementByID(ctx context.Context, movementID id.ID) (*entity.StockMovement, error) {
	for i := range m.movements {
		if m.movements[i].ID == movementID {
			mv := m.movements[i]
			return &mv, nil
		}
	}
	return nil, apperror.NewNotFound("stock movement", movementID)
}

func (m *memLedgerRepo) GetMovementsByReference(ctx context.Context, reference string) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, mv := range m.movements {
		if mv.Reference == reference {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memLedgerRepo) ListMovements(ctx context.Context, filter ledger.MovementFilter) ([]entity.StockMovement, error) {
	return m.movements, nil
}

func (m *memLedgerRepo) CountMovements(ctx context.Context, filter ledger.MovementFilter) (int64, error) {
	return int64(len(m.movements)), nil
}

func (m *memLedgerRepo) GetProductForUpdate(ctx context.Context, productID id.ID) (*entity.ProductRef, error) {
	p, ok := m.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	cp := *p
	return &cp, nil
}

func (m *memLedgerRepo) UpdateQuantity(ctx context.Context, productID id.ID, fromQty, toQty int64) (int64, error) {
	p, ok := m.products[productID]
	if !ok || p.StockQuantity != fromQty {
		return 0, nil
	}
	p.StockQuantity = toQty
	return 1, nil
}

func (m *memLedgerRepo) GetQuantity(ctx context.Context, productID id.ID) (int64, error) {
	p, ok := m.products[productID]
	if !ok {
		return 0, apperror.NewNotFound("product", productID)
	}
	return p.StockQuantity, nil
}

type memSalesRepo struct {
	sales    map[id.ID]*entity.Sale
	items    map[id.ID][]entity.SaleItem
	payments map[id.ID][]entity.Payment
}

func newMemSalesRepo() *memSalesRepo {
	return &memSalesRepo{
		sales:    make(map[id.ID]*entity.Sale),
		items:    make(map[id.ID][]entity.SaleItem),
		payments: make(map[id.ID][]entity.Payment),
	}
}

func (m *memSalesRepo) Create(ctx context.Context, sale *entity.Sale) error {
	cp := *sale
	m.sales[sale.ID] = &cp
	return nil
}

func (m *memSalesRepo) SaveItems(ctx context.Context, saleID id.ID, items []entity.SaleItem) error {
	m.items[saleID] = append([]entity.SaleItem(nil), items...)
	return nil
}

func (m *memSalesRepo) SavePayments(ctx context.Context, saleID id.ID, payments []entity.Payment) error {
	m.payments[saleID] = append([]entity.Payment(nil), payments...)
	return nil
}

func (m *memSalesRepo) GetByID(ctx context.Context, saleID id.ID) (*entity.Sale, error) {
	sale, ok := m.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	cp := *sale
	return &cp, nil
}

func (m *memSalesRepo) GetByReceiptNumber(ctx context.Context, receiptNumber string) (*entity.Sale, error) {
	for _, sale := range m.sales {
		if sale.ReceiptNumber == receiptNumber {
			cp := *sale
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("sale", receiptNumber)
}

func (m *memSalesRepo) GetItems(ctx context.Context, saleID id.ID) ([]entity.SaleItem, error) {
	return m.items[saleID], nil
}

func (m *memSalesRepo) GetPayments(ctx context.Context, saleID id.ID) ([]entity.Payment, error) {
	return m.payments[saleID], nil
}

func (m *memSalesRepo) GetRefundedQuantities(ctx context.Context, originalSaleID id.ID) (map[id.ID]int64, error) {
	out := make(map[id.ID]int64)
	for saleID, sale := range m.sales {
		if sale.OriginalSaleID == nil || *sale.OriginalSaleID != originalSaleID {
			continue
		}
		for _, item := range m.items[saleID] {
			out[item.ProductID] += item.Quantity
		}
	}
	return out, nil
}

func (m *memSalesRepo) UpdateStatus(ctx context.Context, saleID id.ID, status entity.SaleStatus) error {
	sale, ok := m.sales[saleID]
	if !ok {
		return apperror.NewNotFound("sale", saleID)
	}
	sale.Status = status
	return nil
}

func (m *memSalesRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.Sale], error) {
	var items []*entity.Sale
	for _, sale := range m.sales {
		items = append(items, sale)
	}
	return domain.ListResult[*entity.Sale]{Items: items, TotalCount: int64(len(items))}, nil
}

type memCustomerRepo struct {
	customers map[id.ID]*entity.Customer
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{customers: make(map[id.ID]*entity.Customer)}
}

func (m *memCustomerRepo) addCustomer() id.ID {
	c := entity.NewCustomer("test customer")
	c.TotalSpent = types.ZeroMoney()
	m.customers[c.ID] = c
	return c.ID
}

func (m *memCustomerRepo) Create(ctx context.Context, c *entity.Customer) error {
	m.customers[c.ID] = c
	return nil
}

func (m *memCustomerRepo) GetByID(ctx context.Context, customerID id.ID) (*entity.Customer, error) {
	c, ok := m.customers[customerID]
	if !ok {
		return nil, apperror.NewNotFound("customer", customerID)
	}
	return c, nil
}

func (m *memCustomerRepo) GetByPhone(ctx context.Context, phone string) (*entity.Customer, error) {
	return nil, apperror.NewNotFound("customer", phone)
}

func (m *memCustomerRepo) Update(ctx context.Context, c *entity.Customer) error {
	m.customers[c.ID] = c
	return nil
}

func (m *memCustomerRepo) ApplyStatsDelta(ctx context.Context, customerID id.ID, amount types.Money, purchases, points int64) error {
	c, ok := m.customers[customerID]
	if !ok {
		return apperror.NewNotFound("customer", customerID)
	}
	c.TotalSpent = c.TotalSpent.Add(amount)
	c.PurchaseCount += purchases
	c.LoyaltyPoints += points
	return nil
}

func (m *memCustomerRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Customer], error) {
	return domain.ListResult[*entity.Customer]{}, nil
}

type fixture struct {
	ledgerRepo   *memLedgerRepo
	salesRepo    *memSalesRepo
	customerRepo *memCustomerRepo
	sales        *Service
	refunds      *RefundService
}

func newFixture() *fixture {
	ledgerRepo := newMemLedgerRepo()
	salesRepo := newMemSalesRepo()
	customerRepo := newMemCustomerRepo()
	txm := memTxManager{}

	ledgerSvc := ledger.NewService(ledgerRepo, txm)
	customerSvc := customers.NewService(customerRepo, 10)
	gen := &receipt.MockGenerator{}

	return &fixture{
		ledgerRepo:   ledgerRepo,
		salesRepo:    salesRepo,
		customerRepo: customerRepo,
		sales:        NewService(salesRepo, ledgerSvc, customerSvc, gen, txm),
		refunds:      NewRefundService(salesRepo, ledgerSvc, customerSvc, gen, txm),
	}
}

func saleItem(productID id.ID, qty int64, price string) entity.SaleItem {
	return entity.SaleItem{
		ProductID:    productID,
		Quantity:     qty,
		UnitPrice:    types.MustMoney(price),
		Discount:     types.ZeroMoney(),
		DiscountType: entity.DiscountFixed,
	}
}

// --- tests ---

func TestCommitSale_RecordsLedgerAndQuantity(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("2.00"))
	ctx := context.Background()

	sale, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items:       []entity.SaleItem{saleItem(productID, 3, "5.00")},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("15.00"),
		TotalAmount: types.MustMoney("15.00"),
		AmountPaid:  types.MustMoney("15.00"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, sale.ReceiptNumber)

	require.Len(t, f.ledgerRepo.movements, 1)
	mv := f.ledgerRepo.movements[0]
	assert.Equal(t, entity.MovementSale, mv.Type)
	assert.Equal(t, int64(-3), mv.Quantity)
	assert.Equal(t, int64(10), mv.PreviousStock)
	assert.Equal(t, int64(7), mv.NewStock)
	assert.True(t, mv.TotalValue.Equal(types.MustMoney("6.00")),
		"total value %s", mv.TotalValue)
	assert.Equal(t, sale.ReceiptNumber, mv.Reference)

	qty, _ := f.ledgerRepo.GetQuantity(ctx, productID)
	assert.Equal(t, int64(7), qty)
}

func TestCommitSale_InsufficientStock(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(7, types.MustMoney("2.00"))
	ctx := context.Background()

	_, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items:       []entity.SaleItem{saleItem(productID, 10, "5.00")},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("50.00"),
		TotalAmount: types.MustMoney("50.00"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(10), appErr.Details["requested"])
	assert.Equal(t, int64(7), appErr.Details["available"])

	qty, _ := f.ledgerRepo.GetQuantity(ctx, productID)
	assert.Equal(t, int64(7), qty)
	assert.Empty(t, f.ledgerRepo.movements)
	assert.Empty(t, f.salesRepo.sales)
}

func TestCommitSale_AllOrNothing(t *testing.T) {
	f := newFixture()
	okID := f.ledgerRepo.addProduct(100, types.MustMoney("1.00"))
	shortID := f.ledgerRepo.addProduct(1, types.MustMoney("1.00"))
	ctx := context.Background()

	_, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items: []entity.SaleItem{
			saleItem(okID, 5, "2.00"),
			saleItem(shortID, 3, "4.00"),
		},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("22.00"),
		TotalAmount: types.MustMoney("22.00"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// No movement for either item
	assert.Empty(t, f.ledgerRepo.movements)
	qty, _ := f.ledgerRepo.GetQuantity(ctx, okID)
	assert.Equal(t, int64(100), qty)
}

func TestCommitSale_Validation(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("1.00"))
	ctx := context.Background()

	tests := []struct {
		name  string
		input CommitSaleInput
	}{
		{
			name:  "no items",
			input: CommitSaleInput{SellerID: "seller-1"},
		},
		{
			name: "missing seller",
			input: CommitSaleInput{
				Items: []entity.SaleItem{saleItem(productID, 1, "1.00")},
			},
		},
		{
			name: "non-positive quantity",
			input: CommitSaleInput{
				Items:    []entity.SaleItem{saleItem(productID, 0, "1.00")},
				SellerID: "seller-1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sales.CommitSale(ctx, tt.input)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestCommitSale_OmittedDiscountTypeDefaultsToFixed(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("1.00"))
	ctx := context.Background()

	// A plain checkout without discount fields set at all
	sale, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items: []entity.SaleItem{{
			ProductID: productID,
			Quantity:  2,
			UnitPrice: types.MustMoney("5.00"),
		}},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("10.00"),
		TotalAmount: types.MustMoney("10.00"),
	})
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, entity.DiscountFixed, sale.Items[0].DiscountType)

	// A nonzero discount still needs an explicit type
	_, err = f.sales.CommitSale(ctx, CommitSaleInput{
		Items: []entity.SaleItem{{
			ProductID: productID,
			Quantity:  1,
			UnitPrice: types.MustMoney("5.00"),
			Discount:  types.MustMoney("1.00"),
		}},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("4.00"),
		TotalAmount: types.MustMoney("4.00"),
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestGetByID_LoadsItemsAndPayments(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("1.00"))
	ctx := context.Background()

	committed, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items:       []entity.SaleItem{saleItem(productID, 2, "5.00")},
		Payments:    []entity.Payment{{LineID: id.New(), Method: entity.PaymentCash, Amount: types.MustMoney("10.00"), Status: "completed"}},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("10.00"),
		TotalAmount: types.MustMoney("10.00"),
		AmountPaid:  types.MustMoney("10.00"),
	})
	require.NoError(t, err)

	sale, err := f.sales.GetByID(ctx, committed.ID)
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	require.Len(t, sale.Payments, 1)
	assert.Equal(t, committed.ReceiptNumber, sale.ReceiptNumber)
	assert.Equal(t, productID, sale.Items[0].ProductID)
	assert.Equal(t, entity.PaymentCash, sale.Payments[0].Method)
}

func TestCommitSale_TotalsMismatchRejected(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("1.00"))

	_, err := f.sales.CommitSale(context.Background(), CommitSaleInput{
		Items:       []entity.SaleItem{saleItem(productID, 2, "5.00")},
		SellerID:    "seller-1",
		Subtotal:    types.MustMoney("12.00"), // items derive 10.00
		TotalAmount: types.MustMoney("12.00"),
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCommitSale_UpdatesCustomerStats(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(10, types.MustMoney("1.00"))
	customerID := f.customerRepo.addCustomer()
	ctx := context.Background()

	_, err := f.sales.CommitSale(ctx, CommitSaleInput{
		Items:       []entity.SaleItem{saleItem(productID, 4, "25.00")},
		SellerID:    "seller-1",
		CustomerID:  &customerID,
		Subtotal:    types.MustMoney("100.00"),
		TotalAmount: types.MustMoney("100.00"),
	})
	require.NoError(t, err)

	c := f.customerRepo.customers[customerID]
	assert.True(t, c.TotalSpent.Equal(types.MustMoney("100.00")))
	assert.Equal(t, int64(1), c.PurchaseCount)
	assert.Equal(t, int64(10), c.LoyaltyPoints) // 100 / earn rate 10
}

func TestCommitSale_DistinctReceiptNumbers(t *testing.T) {
	f := newFixture()
	productID := f.ledgerRepo.addProduct(100, types.MustMoney("1.00"))
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		sale, err := f.sales.CommitSale(ctx, CommitSaleInput{
			Items:       []entity.SaleItem{saleItem(productID, 1, "1.00")},
			SellerID:    "seller-1",
			Subtotal:    types.MustMoney("1.00"),
			TotalAmount: types.MustMoney("1.00"),
		})
		require.NoError(t, err)
		assert.False(t, seen[sale.ReceiptNumber], "duplicate receipt %s", sale.ReceiptNumber)
		seen[sale.ReceiptNumber] = true
	}
}
