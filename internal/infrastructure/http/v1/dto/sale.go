package dto

import (
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/sales"
)

// --- Request DTOs ---

// SaleItemRequest is one line of a sale.
type SaleItemRequest struct {
	ProductID    string      `json:"productId" binding:"required"`
	Quantity     int64       `json:"quantity" binding:"required,min=1"`
	UnitPrice    types.Money `json:"unitPrice"`
	Discount     types.Money `json:"discount"`
	DiscountType string      `json:"discountType"`
}

// PaymentRequest is one tender against a sale.
type PaymentRequest struct {
	Method    string      `json:"method" binding:"required"`
	Amount    types.Money `json:"amount"`
	Reference string      `json:"reference"`
}

// CommitSaleRequest carries a checkout submitted by the POS client.
// Totals are computed client-side and cross-checked server-side before
// anything is written.
type CommitSaleRequest struct {
	Items      []SaleItemRequest `json:"items" binding:"required"`
	Payments   []PaymentRequest  `json:"payments"`
	CustomerID *string           `json:"customerId"`

	Subtotal       types.Money `json:"subtotal"`
	TaxAmount      types.Money `json:"taxAmount"`
	DiscountAmount types.Money `json:"discountAmount"`
	TotalAmount    types.Money `json:"totalAmount"`
	AmountPaid     types.Money `json:"amountPaid"`
	ChangeAmount   types.Money `json:"changeAmount"`
}

// ToInput converts the request into a domain commit input.
// The seller comes from the authenticated actor, never from the body.
func (r CommitSaleRequest) ToInput(sellerID string) (sales.CommitSaleInput, error) {
	input := sales.CommitSaleInput{
		SellerID:       sellerID,
		Subtotal:       r.Subtotal,
		TaxAmount:      r.TaxAmount,
		DiscountAmount: r.DiscountAmount,
		TotalAmount:    r.TotalAmount,
		AmountPaid:     r.AmountPaid,
		ChangeAmount:   r.ChangeAmount,
	}

	if r.CustomerID != nil && *r.CustomerID != "" {
		customerID, err := id.Parse(*r.CustomerID)
		if err != nil {
			return input, apperror.NewValidation("invalid customerId format")
		}
		input.CustomerID = &customerID
	}

	input.Items = make([]entity.SaleItem, len(r.Items))
	for i, item := range r.Items {
		productID, err := id.Parse(item.ProductID)
		if err != nil {
			return input, apperror.NewValidation("invalid productId format").
				WithDetail("line", i+1)
		}
		input.Items[i] = entity.SaleItem{
			ProductID:    productID,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Discount:     item.Discount,
			DiscountType: entity.DiscountType(item.DiscountType),
		}
	}

	input.Payments = make([]entity.Payment, len(r.Payments))
	for i, p := range r.Payments {
		input.Payments[i] = entity.Payment{
			LineID:    id.New(),
			Method:    entity.PaymentMethod(p.Method),
			Amount:    p.Amount,
			Reference: p.Reference,
			Status:    "completed",
		}
	}

	return input, nil
}

// RefundLineRequest names a product and how much of it comes back.
type RefundLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
}

// CommitRefundRequest carries a refund against an existing sale.
type CommitRefundRequest struct {
	Items  []RefundLineRequest `json:"items" binding:"required"`
	Reason string              `json:"reason"`
}

// ToInput converts the request into a domain refund input.
func (r CommitRefundRequest) ToInput(originalSaleID id.ID, processedBy string) (sales.CommitRefundInput, error) {
	input := sales.CommitRefundInput{
		OriginalSaleID: originalSaleID,
		Reason:         r.Reason,
		ProcessedBy:    processedBy,
	}

	input.Items = make([]sales.RefundLine, len(r.Items))
	for i, line := range r.Items {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return input, apperror.NewValidation("invalid productId format").
				WithDetail("line", i+1)
		}
		input.Items[i] = sales.RefundLine{
			ProductID: productID,
			Quantity:  line.Quantity,
		}
	}

	return input, nil
}

// --- Response DTOs ---

// SaleItemResponse represents a sale line in API responses.
type SaleItemResponse struct {
	LineID       string      `json:"lineId"`
	LineNo       int         `json:"lineNo"`
	ProductID    string      `json:"productId"`
	Quantity     int64       `json:"quantity"`
	UnitPrice    types.Money `json:"unitPrice"`
	Discount     types.Money `json:"discount"`
	DiscountType string      `json:"discountType,omitempty"`
	TotalPrice   types.Money `json:"totalPrice"`
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	Method    string      `json:"method"`
	Amount    types.Money `json:"amount"`
	Reference string      `json:"reference,omitempty"`
	Status    string      `json:"status"`
}

// SaleResponse represents a sale (or refund record) in API responses.
type SaleResponse struct {
	ID             string      `json:"id"`
	ReceiptNumber  string      `json:"receiptNumber"`
	SellerID       string      `json:"sellerId"`
	CustomerID     string      `json:"customerId,omitempty"`
	OriginalSaleID string      `json:"originalSaleId,omitempty"`
	Subtotal       types.Money `json:"subtotal"`
	TaxAmount      types.Money `json:"taxAmount"`
	DiscountAmount types.Money `json:"discountAmount"`
	TotalAmount    types.Money `json:"totalAmount"`
	AmountPaid     types.Money `json:"amountPaid"`
	ChangeAmount   types.Money `json:"changeAmount"`
	Status         string      `json:"status"`
	Notes          string      `json:"notes,omitempty"`
	SaleDate       time.Time   `json:"saleDate"`
	CreatedAt      time.Time   `json:"createdAt"`

	Items    []SaleItemResponse `json:"items,omitempty"`
	Payments []PaymentResponse  `json:"payments,omitempty"`
}

// FromSale converts entity to response DTO.
func FromSale(s *entity.Sale) SaleResponse {
	resp := SaleResponse{
		ID:             s.ID.String(),
		ReceiptNumber:  s.ReceiptNumber,
		SellerID:       s.SellerID,
		Subtotal:       s.Subtotal,
		TaxAmount:      s.TaxAmount,
		DiscountAmount: s.DiscountAmount,
		TotalAmount:    s.TotalAmount,
		AmountPaid:     s.AmountPaid,
		ChangeAmount:   s.ChangeAmount,
		Status:         string(s.Status),
		Notes:          s.Notes,
		SaleDate:       s.SaleDate,
		CreatedAt:      s.CreatedAt,
	}
	if s.CustomerID != nil {
		resp.CustomerID = s.CustomerID.String()
	}
	if s.OriginalSaleID != nil {
		resp.OriginalSaleID = s.OriginalSaleID.String()
	}

	resp.Items = make([]SaleItemResponse, len(s.Items))
	for i, item := range s.Items {
		resp.Items[i] = SaleItemResponse{
			LineID:       item.LineID.String(),
			LineNo:       item.LineNo,
			ProductID:    item.ProductID.String(),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Discount:     item.Discount,
			DiscountType: string(item.DiscountType),
			TotalPrice:   item.TotalPrice,
		}
	}

	resp.Payments = make([]PaymentResponse, len(s.Payments))
	for i, p := range s.Payments {
		resp.Payments[i] = PaymentResponse{
			Method:    string(p.Method),
			Amount:    p.Amount,
			Reference: p.Reference,
			Status:    p.Status,
		}
	}

	return resp
}

// RefundResponse carries the refund record plus the updated original sale.
type RefundResponse struct {
	Refund   SaleResponse `json:"refund"`
	Original SaleResponse `json:"original"`
}

// FromRefundResult converts domain result to response DTO.
func FromRefundResult(r *sales.RefundResult) RefundResponse {
	return RefundResponse{
		Refund:   FromSale(r.Refund),
		Original: FromSale(r.Original),
	}
}
