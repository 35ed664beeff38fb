package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/sales"
	"posledger/internal/infrastructure/http/v1/dto"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/pkg/logger"
)

// SalesHandler handles HTTP requests for sales and refunds.
type SalesHandler struct {
	*BaseHandler
	service *sales.Service
	refunds *sales.RefundService
	catalog *catalog.Service
	audit   *postgres.AuditService
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, service *sales.Service, refunds *sales.RefundService, catalogSvc *catalog.Service, audit *postgres.AuditService) *SalesHandler {
	return &SalesHandler{
		BaseHandler: base,
		service:     service,
		refunds:     refunds,
		catalog:     catalogSvc,
		audit:       audit,
	}
}

// Create handles POST /sales
func (h *SalesHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CommitSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput(h.GetActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	sale, err := h.service.CommitSale(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(c, "sale", sale.ID, postgres.AuditActionSale, map[string]any{
		"receipt_number": sale.ReceiptNumber,
		"total_amount":   sale.TotalAmount,
		"item_count":     len(sale.Items),
	})
	h.invalidateItems(c, sale.Items)

	h.Created(c, dto.FromSale(sale))
}

// Refund handles POST /sales/:id/refunds
func (h *SalesHandler) Refund(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.CommitRefundRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput(saleID, h.GetActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.refunds.CommitRefund(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(c, "sale", result.Refund.ID, postgres.AuditActionRefund, map[string]any{
		"receipt_number":   result.Refund.ReceiptNumber,
		"original_sale_id": saleID.String(),
		"refund_total":     result.Refund.TotalAmount,
		"original_status":  result.Original.Status,
	})
	h.invalidateItems(c, result.Refund.Items)

	h.Created(c, dto.FromRefundResult(result))
}

// GetByID handles GET /sales/:id
func (h *SalesHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	sale, err := h.service.GetByID(ctx, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSale(sale))
}

// GetByReceiptNumber handles GET /sales/receipt/:number
func (h *SalesHandler) GetByReceiptNumber(c *gin.Context) {
	ctx := c.Request.Context()

	number := c.Param("number")
	if number == "" {
		h.Error(c, apperror.NewValidation("receipt number is required"))
		return
	}

	sale, err := h.service.GetByReceiptNumber(ctx, number)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSale(sale))
}

// List handles GET /sales
func (h *SalesHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := sales.ListFilter{}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.SellerID = c.Query("sellerId")
	filter.RefundsOnly = c.Query("refundsOnly") == "true"
	filter.ExcludeRefund = c.Query("excludeRefunds") == "true"

	if custStr := c.Query("customerId"); custStr != "" {
		parsed, err := id.Parse(custStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid customerId format"))
			return
		}
		filter.CustomerID = &parsed
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := entity.SaleStatus(statusStr)
		filter.Status = &status
	}

	if fromStr := c.Query("fromDate"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.FromDate = &parsed
		}
	}
	if toStr := c.Query("toDate"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.ToDate = &parsed
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.SaleResponse, len(result.Items))
	for i, s := range result.Items {
		items[i] = dto.FromSale(s)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// invalidateItems drops cached product snapshots whose stock just changed.
func (h *SalesHandler) invalidateItems(c *gin.Context, items []entity.SaleItem) {
	if h.catalog == nil {
		return
	}
	ids := make([]id.ID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	h.catalog.Invalidate(c.Request.Context(), ids...)
}

// logAudit writes an audit record after a committed operation. The commit
// already succeeded, so audit failures only log.
func (h *SalesHandler) logAudit(c *gin.Context, entityType string, entityID id.ID, action postgres.AuditAction, payload map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogOperation(c.Request.Context(), entityType, entityID, action, payload); err != nil {
		logger.Warn(c.Request.Context(), "audit log failed",
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
	}
}

// RegisterRoutes registers sales routes.
func (h *SalesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/receipt/:number", h.GetByReceiptNumber)
	rg.POST("/:id/refunds", h.Refund)
}
