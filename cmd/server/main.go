package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/achlys/whimsical-backend/config"
	"github.com/achlys/whimsical-backend/internal/app/catalog"
	"github.com/achlys/whimsical-backend/internal/app/checkout"
	"github.com/achlys/whimsical-backend/internal/app/controller"
	"github.com/achlys/whimsical-backend/internal/app/pricing"
	"github.com/achlys/whimsical-backend/internal/app/repository"
	"github.com/achlys/whimsical-backend/internal/app/service"
	"github.com/achlys/whimsical-backend/internal/db"
	"github.com/achlys/whimsical-backend/internal/metrics"
	"github.com/achlys/whimsical-backend/internal/middleware"
	"github.com/achlys/whimsical-backend/internal/router"
	"github.com/achlys/whimsical-backend/internal/scheduler"
	"github.com/achlys/whimsical-backend/internal/storage"
	ws "github.com/achlys/whimsical-backend/internal/websocket"
	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := cfg.Log.Level
	if logLevel == "" {
		logLevel = "info"
		if cfg.Server.Environment == "development" {
			logLevel = "debug"
		}
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
	})

	logger.Info("Starting Whimsical storefront backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
		"cart_store":  cfg.Cart.Store,
	})

	// Initialize database
	conn, err := db.Initialize(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(conn, cfg.Storefront); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Key-value store for cart snapshots and the catalog cache
	opened, err := storage.Open(context.Background(), cfg.Cart, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to open key-value store", err)
	}
	defer func() {
		if err := opened.Close(); err != nil {
			logger.Error("Failed to close key-value store", err)
		}
	}()
	store := opened.Store

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize repositories
	productRepo := repository.NewProductRepository(conn)
	orderRepo := repository.NewOrderRepository(conn)
	settingsRepo := repository.NewSettingsRepository(conn)
	reviewRepo := repository.NewReviewRepository(conn)

	// Catalog: checkout reads the database directly, browsing goes through the cache
	liveCatalog := catalog.NewRepositoryProvider(productRepo)
	cachedCatalog := catalog.NewCachedProvider(liveCatalog, store, cfg.Storefront.CatalogCacheTTL)

	// Initialize services
	hub := ws.NewHub()
	settingsService := service.NewSettingsService(settingsRepo, cfg.Storefront)
	productService := service.NewProductService(productRepo, cachedCatalog)
	reviewService := service.NewReviewService(reviewRepo, productRepo)
	orderService := service.NewOrderService(orderRepo, service.NewOrderBoard())
	sessionService := service.NewSessionService(cachedCatalog, liveCatalog, service.NewOrderSubmitter(conn), settingsService, service.SessionOptions{
		Store: store,
		Cart:  cfg.Cart,
		Checkout: checkout.Options{
			AbortOnAdjustment: cfg.Checkout.AbortOnAdjustment,
			CatalogFailure:    cfg.Checkout.CatalogFailure,
			SubmitTimeout:     cfg.Checkout.SubmitTimeout,
		},
		Metrics:  m,
		Notifier: hub,
	})
	defer sessionService.Close()

	formatter := pricing.NewFormatter(cfg.Storefront.Locale, cfg.Storefront.CurrencySymbol)

	// Initialize controllers
	productController := controller.NewProductController(productService)
	reviewController := controller.NewReviewController(reviewService)
	settingsController := controller.NewSettingsController(settingsService, formatter)
	cartController := controller.NewCartController(sessionService, formatter)
	checkoutController := controller.NewCheckoutController(sessionService, formatter)
	orderController := controller.NewOrderController(orderService)
	noticeController := controller.NewNoticeController(hub, cfg.CORS.AllowedOrigins)
	authController := controller.NewAuthController(service.NewAuthService(cfg.Admin, cfg.JWT))

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	if cfg.Admin.PasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH is not set; admin login is disabled", map[string]interface{}{
			"admin_email": cfg.Admin.Email,
		})
	}

	r := router.NewRouter(
		productController,
		reviewController,
		settingsController,
		cartController,
		checkoutController,
		orderController,
		noticeController,
		authController,
		authMiddleware,
		registry,
		cfg,
	)
	engine := r.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	reconcileScheduler := scheduler.NewReconcileScheduler(sessionService, cfg.Scheduler.ReconcileSpec)
	if err := reconcileScheduler.Start(); err != nil {
		logger.Fatal("Failed to start reconcile scheduler", err)
	}
	defer reconcileScheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown did not complete", err)
	}
	logger.Info("Server stopped successfully")
}
