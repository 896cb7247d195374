package main

// Loads a catalog YAML file into the products table.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/db"
)

type seedConfig struct {
	DatabaseURL string     `env:"DATABASE_URL,required"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

func main() {
	file := flag.String("file", "catalog.yaml", "catalog file to load")
	prune := flag.Bool("prune", false, "deactivate products missing from the file")
	dryRun := flag.Bool("dry-run", false, "validate and report without writing")
	flag.Parse()

	if err := run(*file, catalog.SyncOptions{Prune: *prune, DryRun: *dryRun}); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(path string, opts catalog.SyncOptions) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	var cfg seedConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	result, err := catalog.NewSyncer(db.NewProductStore(pool)).Sync(ctx, content, opts)
	if err != nil {
		return err
	}
	logger.Info("catalog synced",
		"file", path,
		"upserted", len(result.Upserted),
		"deactivated", result.Deactivated,
		"dry_run", opts.DryRun,
	)
	return nil
}
