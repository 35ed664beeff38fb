package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain"
	"posledger/internal/domain/customers"
	"posledger/internal/infrastructure/http/v1/dto"
)

// CustomersHandler handles HTTP requests for loyalty accounts.
type CustomersHandler struct {
	*BaseHandler
	service *customers.Service
}

// NewCustomersHandler creates a new customers handler.
func NewCustomersHandler(base *BaseHandler, service *customers.Service) *CustomersHandler {
	return &CustomersHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /customers
func (h *CustomersHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	customer := req.ToEntity()
	if err := h.service.Create(ctx, customer); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromCustomer(customer))
}

// GetByID handles GET /customers/:id
func (h *CustomersHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	customerID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	customer, err := h.service.GetByID(ctx, customerID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCustomer(customer))
}

// GetByPhone handles GET /customers/phone/:phone
func (h *CustomersHandler) GetByPhone(c *gin.Context) {
	ctx := c.Request.Context()

	customer, err := h.service.GetByPhone(ctx, c.Param("phone"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCustomer(customer))
}

// Update handles PUT /customers/:id
func (h *CustomersHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	customerID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	customer, err := h.service.GetByID(ctx, customerID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(customer)
	if err := h.service.Update(ctx, customer); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCustomer(customer))
}

// List handles GET /customers
func (h *CustomersHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := domain.ListFilter{
		Search: c.Query("search"),
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.CustomerResponse, len(result.Items))
	for i, cust := range result.Items {
		items[i] = dto.FromCustomer(cust)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers customer routes.
func (h *CustomersHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/phone/:phone", h.GetByPhone)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
}
