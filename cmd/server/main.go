// Package main is the entry point for the posledger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"posledger/internal/domain/catalog"
	"posledger/internal/domain/customers"
	"posledger/internal/domain/ledger"
	"posledger/internal/domain/sales"
	"posledger/internal/infrastructure/cache"
	v1 "posledger/internal/infrastructure/http/v1"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/pkg/config"
	"posledger/pkg/logger"
	"posledger/pkg/receipts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting posledger server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.DSN())
	poolCfg.MaxConns = int32(cfg.DB.MaxConns)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	ledgerRepo := postgres.NewLedgerRepo(txManager)
	catalogRepo := postgres.NewCatalogRepo(txManager)
	customerRepo := postgres.NewCustomerRepo(txManager)
	salesRepo := postgres.NewSalesRepo(txManager)

	// --- Receipt numbering ---
	// Numbers allocated through the transaction's connection when one is
	// open, so SetNextNumber admin calls see committed state.
	receiptService := receipts.NewWithProvider(func(ctx context.Context) receipts.Querier {
		return txManager.GetQuerier(ctx)
	})

	// --- Redis cache (optional) ---
	var productCache catalog.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer redisCache.Close()
		productCache = redisCache
		log.Infow("redis cache enabled", "addr", cfg.Redis.Addr)
	}

	// --- Domain services ---
	ledgerService := ledger.NewService(ledgerRepo, txManager)
	catalogService := catalog.NewService(catalogRepo, productCache, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
	customerService := customers.NewService(customerRepo, cfg.Loyalty.EarnRate)
	salesService := sales.NewService(salesRepo, ledgerService, customerService, receiptService, txManager)
	refundService := sales.NewRefundService(salesRepo, ledgerService, customerService, receiptService, txManager)

	// --- Audit trail (optional) ---
	var auditService *postgres.AuditService
	if cfg.Audit.Enabled {
		auditService, err = postgres.NewAuditService(txManager)
		if err != nil {
			log.Fatalw("failed to initialize audit service", "error", err)
		}
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:            pool,
		Logger:          log,
		JWTSecret:       cfg.JWT.Secret,
		JWTIssuer:       cfg.JWT.Issuer,
		SalesService:    salesService,
		RefundService:   refundService,
		LedgerService:   ledgerService,
		CatalogService:  catalogService,
		CustomerService: customerService,
		AuditService:    auditService,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
