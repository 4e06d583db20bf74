package main

import (
	"context"
	"flag"
	"time"

	"github.com/cloudtrack/certprep/internal/catalog"
	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/database"
	"github.com/cloudtrack/certprep/internal/logger"
	"github.com/cloudtrack/certprep/internal/repository"
	"github.com/cloudtrack/certprep/internal/worker"
)

func main() {
	path := flag.String("catalog", "", "TOML catalog to seed from (defaults to EXAM_CATALOG_PATH, then the built-in catalog)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	if *path == "" {
		*path = cfg.CatalogPath
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cat, err := catalog.Load(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	repo := repository.NewQuestionRepository(pool)

	bank := cat.Bank()
	for start := 0; start < len(bank); start += worker.ImportBatchSize {
		end := min(start+worker.ImportBatchSize, len(bank))
		if err := repo.BulkUpsert(ctx, bank[start:end]); err != nil {
			log.Fatal().Err(err).Int("offset", start).Msg("Failed to upsert questions")
		}
		log.Info().Int("from", start).Int("to", end).Msg("Seeded batch")
	}

	log.Info().Int("questions", len(bank)).Msg("Question bank seeded")
}
