package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wareflow/wareflow/internal/app"
	"github.com/wareflow/wareflow/internal/approval"
	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/masterdata/categories"
	"github.com/wareflow/wareflow/internal/masterdata/products"
	"github.com/wareflow/wareflow/internal/masterdata/vendors"
	"github.com/wareflow/wareflow/internal/observability"
	"github.com/wareflow/wareflow/internal/orders"
	"github.com/wareflow/wareflow/internal/platform/cache"
	"github.com/wareflow/wareflow/internal/platform/db"
	"github.com/wareflow/wareflow/internal/purchasing"
	"github.com/wareflow/wareflow/internal/rbac"
	"github.com/wareflow/wareflow/internal/shared"
	"github.com/wareflow/wareflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, availability cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	approvalHistory := shared.NewApprovalHistory(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	rbacService := rbac.NewService(pool)
	rbacMiddleware := rbac.Middleware{Source: rbacService, Logger: logger}

	availabilityCache := inventory.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, availabilityCache)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, auditLogger, idempotencyStore, availabilityCache)
	ordersHandler := orders.NewHandler(logger, ordersService, rbacMiddleware)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, auditLogger)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, rbacMiddleware)

	approvalRepo := approval.NewRepository(pool)
	approvalService := approval.NewService(approval.DefaultRules(), approvalRepo, approvalHistory, auditLogger)
	approvalHandler := approval.NewHandler(logger, approvalService, rbacMiddleware)

	productsHandler := products.NewHandler(logger, products.NewService(products.NewRepository(pool)))
	vendorsHandler := vendors.NewHandler(logger, vendors.NewService(vendors.NewRepository(pool)))
	categoriesHandler := categories.NewHandler(logger, categories.NewService(categories.NewRepository(pool)))

	jobsHandler := jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Pool:              pool,
		Metrics:           metrics,
		InventoryHandler:  inventoryHandler,
		OrdersHandler:     ordersHandler,
		PurchasingHandler: purchasingHandler,
		ApprovalHandler:   approvalHandler,
		ProductsHandler:   productsHandler,
		VendorsHandler:    vendorsHandler,
		CategoriesHandler: categoriesHandler,
		JobsHandler:       jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
