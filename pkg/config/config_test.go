package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.EnvDev, cfg.SIFEN.Env)
	assert.False(t, cfg.SIFEN.SendsToAuthority())
	assert.Equal(t, 20, cfg.SIFEN.BatchSize)
	assert.Equal(t, 4, cfg.SIFEN.SubmitConcurrency)
	assert.Equal(t, time.Minute, cfg.SIFEN.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.SIFEN.StuckGrace)
	assert.Equal(t, 48*time.Hour, cfg.SIFEN.VoidByCreditAfter)
	assert.Equal(t, "50", cfg.SIFEN.RoundingUnit.String())
	assert.Equal(t, 10, cfg.SIFEN.SecurityCodeAttempts)
	assert.Equal(t, config.DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 25, cfg.DB.MaxConns)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SIFEN_ENV", "TEST")
	t.Setenv("SIFEN_BATCH_SIZE", "35")
	t.Setenv("SIFEN_POLL_INTERVAL", "30s")
	t.Setenv("SIFEN_STUCK_GRACE", "600")
	t.Setenv("SIFEN_ROUNDING_UNIT", "100")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DB_PORT", "6543")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.EnvTest, cfg.SIFEN.Env)
	assert.True(t, cfg.SIFEN.SendsToAuthority())
	assert.Equal(t, 35, cfg.SIFEN.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.SIFEN.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.SIFEN.StuckGrace)
	assert.Equal(t, "100", cfg.SIFEN.RoundingUnit.String())
	assert.Equal(t, config.DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 6543, cfg.DB.Port)
}

func TestLoad_Invalido(t *testing.T) {
	t.Setenv("SIFEN_ENV", "staging")
	_, err := config.Load()
	assert.ErrorContains(t, err, "SIFEN_ENV")

	t.Setenv("SIFEN_ENV", "prod")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err = config.Load()
	assert.ErrorContains(t, err, "STORAGE_DRIVER")
}

func TestDBConfig_DSN(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "sifen", Password: "p@ss:word", DBName: "fe", SSLMode: "disable"}
	assert.Equal(t, "postgres://sifen:p%40ss%3Aword@db:5432/fe?sslmode=disable", c.DSN())
	assert.Equal(t, c.DSN(), c.ConnectionString())

	c.DatabaseURL = "postgresql://x@y/z"
	assert.Equal(t, "postgresql://x@y/z", c.ConnectionString())
}
