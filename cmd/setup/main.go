package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ThiagoRGoveia/section3-compliance/internal/config"
	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
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

	ctx := context.Background()
	log.Info("Starting database setup...")

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Unable to connect to database", "error", err)
	}
	defer dbpool.Close()

	dbManager := database.NewPostgresDBManager(dbpool, log)

	if err := dbManager.CreateSchema(ctx); err != nil {
		log.Fatal("Error creating schema", "error", err)
	}
	log.Info("Schema created")

	if err := dbManager.CreateLaborHourIndexes(ctx); err != nil {
		log.Fatal("Error creating labor hour indexes", "error", err)
	}
	log.Info("Database setup finished successfully.")
}
