package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/catalog"
	"posledger/internal/infrastructure/http/v1/dto"
)

// ProductsHandler handles HTTP requests for the product catalog.
type ProductsHandler struct {
	*BaseHandler
	service *catalog.Service
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(base *BaseHandler, service *catalog.Service) *ProductsHandler {
	return &ProductsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /products
func (h *ProductsHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	product := req.ToEntity()
	if err := h.service.Create(ctx, product); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromProduct(product))
}

// GetByID handles GET /products/:id
func (h *ProductsHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	product, err := h.service.GetByID(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromProduct(product))
}

// GetBySKU handles GET /products/sku/:sku
func (h *ProductsHandler) GetBySKU(c *gin.Context) {
	ctx := c.Request.Context()

	product, err := h.service.GetBySKU(ctx, c.Param("sku"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromProduct(product))
}

// GetByBarcode handles GET /products/barcode/:barcode
func (h *ProductsHandler) GetByBarcode(c *gin.Context) {
	ctx := c.Request.Context()

	product, err := h.service.GetByBarcode(ctx, c.Param("barcode"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromProduct(product))
}

// Update handles PUT /products/:id
func (h *ProductsHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	product, err := h.service.GetByID(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(product)
	if err := h.service.Update(ctx, product); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromProduct(product))
}

// List handles GET /products
func (h *ProductsHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := catalog.ListFilter{
		Category:   c.Query("category"),
		ActiveOnly: c.Query("activeOnly") == "true",
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ProductResponse, len(result.Items))
	for i, p := range result.Items {
		items[i] = dto.FromProduct(p)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// ListLowStock handles GET /products/low-stock
func (h *ProductsHandler) ListLowStock(c *gin.Context) {
	ctx := c.Request.Context()

	products, err := h.service.ListLowStock(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ProductResponse, len(products))
	for i, p := range products {
		items[i] = dto.FromProduct(p)
	}

	h.OK(c, gin.H{"items": items})
}

// RegisterRoutes registers product catalog routes.
func (h *ProductsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/low-stock", h.ListLowStock)
	rg.GET("/sku/:sku", h.GetBySKU)
	rg.GET("/barcode/:barcode", h.GetByBarcode)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
}
