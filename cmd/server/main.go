// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/provider"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	conn, dialect, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer conn.Close()

	version, err := db.Migrate(ctx, conn, dialect)
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("database ready", zap.String("driver", cfg.DBDriver), zap.Int("schema_version", version))

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Services
	// ------------------------------------------------
	gen, err := provider.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("provider setup failed", zap.Error(err))
	}

	stores := repository.NewStores(conn, dialect)
	campaignService := &service.CampaignService{
		CampaignRepo:      stores.Campaigns,
		BatchRepo:         stores.Batches,
		DraftRepo:         stores.Drafts,
		JobRepo:           stores.Jobs,
		ProfileRepo:       stores.Profiles,
		Provider:          gen,
		Log:               logger,
		DefaultCities:     cfg.DefaultCities,
		DefaultTimezone:   cfg.DefaultTimezone,
		GenerationTimeout: cfg.GenerationTimeout,
	}
	batchService := &service.BatchService{BatchRepo: stores.Batches, Log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	(&controller.CampaignController{CampaignService: campaignService, Log: logger}).Mount(r)
	handler.NewBatchHandler(batchService, logger).Mount(r)
	(&handler.ProfileHandler{Repo: stores.Profiles, Log: logger}).Mount(r)

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}
	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort), zap.String("provider", gen.Name()))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
