package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/store"
)

// Usage: seed-exams [file]
// The file defaults to SEED_FILE. Exams whose access code already exists are
// skipped.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	path := cfg.SeedFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		log.Fatal().Msg("No seed file: pass a path or set SEED_FILE")
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to open seed file")
	}
	exams, err := store.ParseSeed(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Invalid seed file")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	repo := repository.NewExamRepository(pool)

	fmt.Printf("=== Seeding %d exams from %s ===\n", len(exams), path)

	created := 0
	for i := range exams {
		e := &exams[i]
		ok, err := repo.ImportExam(ctx, e)
		if err != nil {
			fmt.Printf("Error importing %s (%s): %v\n", e.AccessCode, e.Title, err)
			continue
		}
		if !ok {
			fmt.Printf("Skipped %s: access code already exists\n", e.AccessCode)
			continue
		}
		created++
		fmt.Printf("Created %s with %d questions (ID: %s)\n", e.AccessCode, len(e.Questions), e.ID)
	}

	fmt.Printf("\nSeed completed! Added %d/%d exams.\n", created, len(exams))
}
