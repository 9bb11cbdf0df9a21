// migrate aplica las migraciones SQL embebidas sobre la base configurada (DB_* o DATABASE_URL).
//
// Uso: go run ./cmd/migrate
package main

import (
	"context"
	"time"

	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/postgres"
	"github.com/jhoicas/facturacion-sifen/pkg/config"
	"github.com/jhoicas/facturacion-sifen/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	applied, err := postgres.Migrate(ctx, pool, log.Component("migrate"))
	if err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}
	log.Info().Int("applied", applied).Msg("migraciones aplicadas")
}
