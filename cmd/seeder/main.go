// cmd/seeder/main.go
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/unclebandit/wacrm-dispatch/internal/config"
	"github.com/unclebandit/wacrm-dispatch/internal/db"
	"github.com/unclebandit/wacrm-dispatch/internal/logging"
)

var seedFiles = []string{
	"seed/contacts.sql",
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.Storage.Driver != config.DriverPostgres {
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("seeding needs STORAGE_DRIVER=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.Storage.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to read seed file")
		}

		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to execute seed file")
		}
		log.Info().Str("file", file).Msg("seeded")
	}

	log.Info().Msg("database seeding completed successfully")
}
