package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricewatch/config"
	"pricewatch/database"
	"pricewatch/handlers"
	"pricewatch/middleware"
	"pricewatch/repository"
	"pricewatch/scheduler"
	"pricewatch/scraper"
	"pricewatch/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateService(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	logger := config.NewLogger(cfg.Log)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.CreateTables(ctx, db); err != nil {
		logger.Fatalf("Failed to create tables: %v", err)
	}

	productRepo := repository.NewProductRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	extractor := scraper.NewExtractor(scraper.NewTiers(cfg.Scraper, cfg.Etsy, logger), logger)

	notifiers := []services.PriceDropNotifier{services.NewLogNotifier(logger)}
	priceChecker := scheduler.NewPriceChecker(cfg.Monitor.Schedule, productRepo, notificationRepo, extractor, notifiers, logger)
	cleaner := scheduler.NewNotificationCleaner(cfg.Monitor.CleanupSchedule, cfg.Monitor.RetentionDays, notificationRepo, logger)

	if cfg.Monitor.Enabled {
		if err := priceChecker.Start(); err != nil {
			logger.Fatalf("%v", err)
		}
		defer priceChecker.Stop()

		if err := cleaner.Start(); err != nil {
			logger.Fatalf("%v", err)
		}
		defer cleaner.Stop()
	}

	// the monitor loop always extracts fresh; API lookups may be served from cache
	var apiExtractor handlers.Extractor = extractor
	if cfg.Scraper.CacheTTL > 0 {
		apiExtractor = scraper.NewCachedExtractor(extractor, cfg.Scraper.CacheTTL, logger)
	}

	h := handlers.NewHandlers(apiExtractor, priceChecker, productRepo, logger)

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(logger))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	apiV1.HandleFunc("/extract", h.ExtractPrice).Methods("POST")
	apiV1.HandleFunc("/products/{id}", h.GetProduct).Methods("GET")
	apiV1.HandleFunc("/products/{id}/history", h.GetPriceHistory).Methods("GET")

	monitor := apiV1.PathPrefix("/monitor").Subrouter()
	monitor.Use(middleware.BearerSecretMiddleware(cfg.Monitor.CronSecret))
	monitor.HandleFunc("/check-prices", h.CheckPrices).Methods("GET", "POST")

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("🌐 Server starting")
		logger.Info("   GET  /health - Health check")
		logger.Info("   POST /api/v1/extract - Extract product price")
		logger.Info("   GET  /api/v1/products/{id} - Product details")
		logger.Info("   GET  /api/v1/products/{id}/history - Price history")
		logger.Info("   POST /api/v1/monitor/check-prices - Run a price check now")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	// a monitor pass can run long; give in-flight requests a bounded window
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}
