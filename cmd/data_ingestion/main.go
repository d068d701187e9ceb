package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ThiagoRGoveia/section3-compliance/internal/config"
	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/ingestion"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
)

var (
	parserWorkers int
	dbWorkers     int
	batchSize     int
)

var rootCmd = &cobra.Command{
	Use:   "data_ingestion <directory>",
	Short: "Import labor-hour CSV exports into the compliance database",
	Long: `Scan a directory for labor-hour CSV exports and load every row into
labor_hours. Files whose checksum was already imported are skipped, and rows
already present are not inserted twice.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().IntVar(&parserWorkers, "parser-workers", 0, "number of CSV parser workers (overrides NUM_PARSER_WORKERS)")
	rootCmd.Flags().IntVar(&dbWorkers, "db-workers", 0, "number of database writers (overrides NUM_DB_WORKERS)")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per staging COPY (overrides DB_BATCH_SIZE)")
}

func setup(ctx context.Context) (*ingestion.IngestionService, *logger.Logger, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if parserWorkers > 0 {
		cfg.NumParserWorkers = parserWorkers
	}
	if dbWorkers > 0 {
		cfg.NumDBWorkers = dbWorkers
	}
	if batchSize > 0 {
		cfg.DBBatchSize = batchSize
	}

	log, err := logger.New(logger.Options{Mode: cfg.LogMode, File: cfg.LogFile})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Sync()
		return nil, nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	dbManager := database.NewPostgresDBManager(dbpool, log)
	fileProcessor := ingestion.NewFileProcessor(dbManager, log)
	asyncWorker := ingestion.NewAsyncWorker(dbManager, ingestion.AsyncWorkerConfig{
		DBBatchSize: cfg.DBBatchSize,
	}, log)

	service := ingestion.NewIngestionService(
		dbManager,
		ingestion.Setup{ResultsChannelSize: cfg.ResultsChannelSize},
		asyncWorker,
		fileProcessor,
		*cfg,
		log,
	)

	cleanup := func() {
		log.Info("Cleaning up resources...")
		dbpool.Close()
		log.Sync()
	}

	return service, log, cleanup, nil
}

func run(cmd *cobra.Command, args []string) error {
	filesPath := args[0]
	if info, err := os.Stat(filesPath); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a readable directory", filesPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	service, log, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info("Starting extraction process...", "path", filesPath)
	if err := service.Execute(ctx, filesPath); err != nil {
		return fmt.Errorf("error during extraction: %w", err)
	}

	log.Info("Extraction process finished.", "elapsed", time.Since(startTime).String())
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
