// Package main is the entry point for the stokado API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"stokado/internal/domain/auth"
	"stokado/internal/domain/catalogs/product"
	"stokado/internal/domain/catalogs/warehouse"
	"stokado/internal/domain/documents/goodsreceipt"
	"stokado/internal/domain/documents/salesorder"
	"stokado/internal/domain/ledger"
	"stokado/internal/infrastructure/cache"
	v1 "stokado/internal/infrastructure/http/v1"
	"stokado/internal/infrastructure/storage/postgres"
	"stokado/internal/infrastructure/storage/postgres/catalog_repo"
	"stokado/internal/infrastructure/storage/postgres/document_repo"
	"stokado/internal/infrastructure/storage/postgres/ledger_repo"
	"stokado/pkg/logger"
	"stokado/pkg/numerator"
)

func main() {
	// .env is optional; system environment wins
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stokado server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Availability cache (optional) ---
	var availabilityCache ledger.AvailabilityCache
	if redisAddr := getEnv("REDIS_ADDR", ""); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()

		availabilityCache = cache.NewAvailabilityCache(
			redisClient,
			getEnvDuration("AVAILABILITY_CACHE_TTL", 30*time.Second),
		)
		log.Infow("availability cache enabled", "addr", redisAddr)
	}

	// --- Allocation policy ---
	policy, err := allocationPolicyFromEnv()
	if err != nil {
		log.Fatalw("failed to configure allocation policy", "error", err)
	}

	// --- JWT ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Shared services ---
	numeratorService := numerator.New(pool)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Domain services ---
	stockRepo := ledger_repo.NewStockRepo(txManager)
	stockService := ledger.NewService(ledger.Config{
		Repo:      stockRepo,
		TxManager: txManager,
		Policy:    policy,
		Cache:     availabilityCache,
	})

	productService := product.NewService(
		catalog_repo.NewProductRepo(txManager),
		txManager,
		numeratorService,
		stockService,
		auditService,
	)

	warehouseService := warehouse.NewService(
		catalog_repo.NewWarehouseRepo(txManager),
		txManager,
		numeratorService,
		stockService,
		auditService,
	)

	salesOrderService := salesorder.NewService(
		document_repo.NewSalesOrderRepo(txManager),
		stockService,
		numeratorService,
		txManager,
		auditService,
	)

	goodsReceiptService := goodsreceipt.NewService(
		document_repo.NewGoodsReceiptRepo(txManager),
		stockService,
		numeratorService,
		txManager,
		auditService,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:          pool,
		Logger:        log,
		JWTValidator:  jwtService,
		Stock:         stockService,
		Products:      productService,
		Warehouses:    warehouseService,
		SalesOrders:   salesOrderService,
		GoodsReceipts: goodsReceiptService,
		Audit:         auditService,
		Sequences:     numeratorService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
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

// allocationPolicyFromEnv builds the warehouse ordering policy for reservations.
// ALLOCATION_POLICY: priority (default), warehouse_id, or cel (with ALLOCATION_EXPR).
func allocationPolicyFromEnv() (ledger.AllocationPolicy, error) {
	switch name := getEnv("ALLOCATION_POLICY", "priority"); name {
	case "priority":
		return ledger.PriorityPolicy{}, nil
	case "warehouse_id":
		return ledger.WarehouseIDPolicy{}, nil
	case "cel":
		expr := os.Getenv("ALLOCATION_EXPR")
		if expr == "" {
			return nil, fmt.Errorf("ALLOCATION_EXPR is required for cel policy")
		}
		return ledger.NewCELPolicy(expr)
	default:
		return nil, fmt.Errorf("unknown allocation policy %q", name)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
