// migrate applies the embedded postgres schema: go run ./cmd/migrate -direction up
package main

import (
	"context"
	"flag"
	"os"

	"github.com/sethvargo/go-envconfig"

	"github.com/99minutos/user-directory/internal/infrastructure/db/postgres"
	"github.com/99minutos/user-directory/pkg/logger"
)

type migrateConfig struct {
	DatabaseURL string `env:"DATABASE_URL, required"`
	LogLevel    string `env:"LOG_LEVEL, default=info"`
}

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	var cfg migrateConfig
	err := envconfig.Process(context.Background(), &cfg)

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Service: "user-directory-migrate"})
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(1)
	}

	if err := postgres.Migrate(cfg.DatabaseURL, *direction); err != nil {
		log.Error().Err(err).Str("direction", *direction).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().Str("direction", *direction).Msg("migrations applied")
}
