package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ThiagoRGoveia/section3-compliance/internal/compliance"
	"github.com/ThiagoRGoveia/section3-compliance/internal/config"
	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/offline"
	"github.com/ThiagoRGoveia/section3-compliance/internal/reporting"
	"github.com/ThiagoRGoveia/section3-compliance/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(logger.New(logger.Options{Mode: cfg.LogMode, File: cfg.LogFile}))
	defer log.Sync()

	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to the database", "error", err)
	}
	defer dbpool.Close()
	dbManager := database.NewPostgresDBManager(dbpool, log)

	aggregator, err := compliance.NewAggregator(cfg.Policy())
	if err != nil {
		log.Fatal("Invalid compliance policy", "error", err)
	}
	log.Info("Compliance policy loaded", "policy", cfg.Policy())

	reporter := reporting.NewReporter(dbManager, aggregator, log)
	replayer := offline.NewReplayer(dbManager, log)

	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins:     cfg.AllowedOrigins(),
		HealthHandler:      server.NewHealthHandler(log, dbManager),
		ComplianceHandler:  server.NewComplianceHandler(log, reporter),
		LaborHourHandler:   server.NewLaborHourHandler(log, dbManager),
		EligibilityHandler: server.NewEligibilityHandler(log, dbManager),
		OfflineHandler:     server.NewOfflineHandler(log, dbManager, replayer),
	})

	if err := server.NewService(cfg.APIPort, router, log).Run(ctx); err != nil {
		log.Fatal("Server stopped", "error", err)
	}
	log.Info("Server stopped")
}
