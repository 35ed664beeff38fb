// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/domain/catalog"
	"posledger/internal/domain/customers"
	"posledger/internal/domain/ledger"
	"posledger/internal/domain/sales"
	"posledger/internal/infrastructure/http/v1/handlers"
	"posledger/internal/infrastructure/http/v1/middleware"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection (used for readiness checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTSecret signs actor identity tokens; empty enables the
	// X-Actor-ID dev fallback
	JWTSecret string
	JWTIssuer string

	// Domain services
	SalesService    *sales.Service
	RefundService   *sales.RefundService
	LedgerService   *ledger.Service
	CatalogService  *catalog.Service
	CustomerService *customers.Service

	// AuditService records committed operations (optional)
	AuditService *postgres.AuditService
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no actor required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1 - every endpoint runs with an identified actor
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Actor(cfg.JWTSecret, cfg.JWTIssuer))

	baseHandler := handlers.NewBaseHandler()

	salesHandler := handlers.NewSalesHandler(baseHandler, cfg.SalesService, cfg.RefundService, cfg.CatalogService, cfg.AuditService)
	salesHandler.RegisterRoutes(v1.Group("/sales"))

	stockHandler := handlers.NewStockHandler(baseHandler, cfg.LedgerService, cfg.CatalogService, cfg.AuditService)
	stockHandler.RegisterRoutes(v1.Group("/stock"))

	productsHandler := handlers.NewProductsHandler(baseHandler, cfg.CatalogService)
	productsHandler.RegisterRoutes(v1.Group("/products"))

	customersHandler := handlers.NewCustomersHandler(baseHandler, cfg.CustomerService)
	customersHandler.RegisterRoutes(v1.Group("/customers"))

	return router
}
