package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/ledger"
	"posledger/internal/infrastructure/http/v1/dto"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/pkg/logger"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
	catalog *catalog.Service
	audit   *postgres.AuditService
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service, catalogSvc *catalog.Service, audit *postgres.AuditService) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
		catalog:     catalogSvc,
		audit:       audit,
	}
}

// PostAdjustment handles POST /stock/adjustments
func (h *StockHandler) PostAdjustment(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	movement, err := h.service.PostAdjustment(ctx, ledger.AdjustmentInput{
		ProductID: productID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		UserID:    h.GetActorID(c),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(c, movement.ID, postgres.AuditActionAdjustment, map[string]any{
		"product_id": productID.String(),
		"quantity":   req.Quantity,
		"reason":     req.Reason,
	})
	h.invalidate(c, productID)

	h.Created(c, dto.FromStockMovement(*movement))
}

// ReverseMovement handles POST /stock/movements/:id/reverse
func (h *StockHandler) ReverseMovement(c *gin.Context) {
	ctx := c.Request.Context()

	movementID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	reversal, err := h.service.ReverseMovement(ctx, movementID, h.GetActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(c, reversal.ID, postgres.AuditActionReversal, map[string]any{
		"original_movement_id": movementID.String(),
		"quantity":             reversal.Quantity,
	})
	h.invalidate(c, reversal.ProductID)

	h.Created(c, dto.FromStockMovement(*reversal))
}

// GetMovements handles GET /stock/movements
func (h *StockHandler) GetMovements(c *gin.Context) {
	ctx := c.Request.Context()

	filter := ledger.MovementFilter{
		Reference: c.Query("reference"),
		Limit:     h.ParseIntQuery(c, "limit", 100),
		Offset:    h.ParseIntQuery(c, "offset", 0),
	}

	if pStr := c.Query("productId"); pStr != "" {
		parsed, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		filter.ProductID = &parsed
	}

	if typeStr := c.Query("type"); typeStr != "" {
		mt := entity.MovementType(typeStr)
		if !entity.ValidMovementType(mt) {
			h.Error(c, apperror.NewValidation("invalid movement type").
				WithDetail("type", typeStr))
			return
		}
		filter.Type = &mt
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

	result, err := h.service.ListMovements(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockMovementResponse, len(result.Items))
	for i, m := range result.Items {
		items[i] = dto.FromStockMovement(m)
	}

	h.OK(c, dto.StockMovementListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// GetAvailability handles GET /stock/availability/:productId
func (h *StockHandler) GetAvailability(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	quantity, err := h.service.GetQuantity(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AvailabilityResponse{
		ProductID: productID.String(),
		Quantity:  quantity,
	})
}

// invalidate drops the cached product snapshot whose stock just changed.
func (h *StockHandler) invalidate(c *gin.Context, productID id.ID) {
	if h.catalog == nil {
		return
	}
	h.catalog.Invalidate(c.Request.Context(), productID)
}

func (h *StockHandler) logAudit(c *gin.Context, entityID id.ID, action postgres.AuditAction, payload map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogOperation(c.Request.Context(), "stock_movement", entityID, action, payload); err != nil {
		logger.Warn(c.Request.Context(), "audit log failed",
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
	}
}

// RegisterRoutes registers stock ledger routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/adjustments", h.PostAdjustment)
	rg.POST("/movements/:id/reverse", h.ReverseMovement)
	rg.GET("/movements", h.GetMovements)
	rg.GET("/availability/:productId", h.GetAvailability)
}
