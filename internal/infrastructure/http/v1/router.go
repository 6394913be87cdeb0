// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stokado/internal/domain/catalogs/product"
	"stokado/internal/domain/catalogs/warehouse"
	"stokado/internal/domain/documents/goodsreceipt"
	"stokado/internal/domain/documents/salesorder"
	"stokado/internal/domain/ledger"
	"stokado/internal/infrastructure/http/v1/handlers"
	"stokado/internal/infrastructure/http/v1/middleware"
	"stokado/internal/infrastructure/storage/postgres"
	"stokado/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Domain services
	Stock         *ledger.Service
	Products      *product.Service
	Warehouses    *warehouse.Service
	SalesOrders   *salesorder.Service
	GoodsReceipts *goodsreceipt.Service

	// Admin surface
	Audit     handlers.AuditTrail
	Sequences handlers.Sequencer
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

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()
	stockHandler := handlers.NewStockHandler(baseHandler, cfg.Stock)

	// Availability reads are open to storefront callers; a token, when
	// present, still attributes the request.
	public := router.Group("/api/v1/stock")
	public.Use(middleware.OptionalAuth(cfg.JWTValidator))
	stockHandler.RegisterPublicRoutes(public)

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))

	stockHandler.RegisterRoutes(v1.Group("/stock"))

	productHandler := handlers.NewProductHandler(baseHandler, cfg.Products)
	productHandler.RegisterRoutes(v1.Group("/products"))

	warehouseHandler := handlers.NewWarehouseHandler(baseHandler, cfg.Warehouses)
	warehouseHandler.RegisterRoutes(v1.Group("/warehouses"))

	salesOrderHandler := handlers.NewSalesOrderHandler(baseHandler, cfg.SalesOrders)
	salesOrderHandler.RegisterRoutes(v1.Group("/sales-orders"))

	goodsReceiptHandler := handlers.NewGoodsReceiptHandler(baseHandler, cfg.GoodsReceipts)
	goodsReceiptHandler.RegisterRoutes(v1.Group("/goods-receipts"))

	adminHandler := handlers.NewAdminHandler(baseHandler, cfg.Audit, cfg.Sequences)
	admin := v1.Group("/admin")
	admin.Use(middleware.RequireRole("admin"))
	adminHandler.RegisterRoutes(admin)

	return router
}
