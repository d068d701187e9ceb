package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ThiagoRGoveia/section3-compliance/internal/config"
	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/offline"
)

var (
	interval time.Duration
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:   "offline_sync",
	Short: "Replay labor-hour entries captured offline",
	Long: `Replay every pending offline entry, oldest first, one at a time.
With --interval the queue is drained repeatedly until interrupted.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	rootCmd.Flags().DurationVar(&interval, "interval", 0, "repeat the replay on this interval instead of exiting")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "print each replay result as JSON")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{Mode: cfg.LogMode, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer dbpool.Close()

	replayer := offline.NewReplayer(database.NewPostgresDBManager(dbpool, log), log)

	if interval <= 0 {
		return replayOnce(ctx, cmd, replayer)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := replayOnce(ctx, cmd, replayer); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("offline replay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func replayOnce(ctx context.Context, cmd *cobra.Command, replayer *offline.Replayer) error {
	result, err := replayer.Replay(ctx)
	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d pending, %d synced, %d failed, %d skipped\n",
			result.RunID, result.Pending, result.Synced, result.Failed, result.Skipped)
	}
	return err
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
