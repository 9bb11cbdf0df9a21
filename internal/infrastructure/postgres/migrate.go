package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID identifica el advisory lock de sesión que evita dos migradores simultáneos.
const migrationLockID = 7462839

// Migrate aplica en orden las migraciones embebidas que aún no figuran en schema_migrations.
// Una migración ya aplicada cuyo contenido cambió es un error.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (applied int, err error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, migrationLockID).Scan(&locked); err != nil {
		return 0, fmt.Errorf("advisory lock: %w", err)
	}
	if !locked {
		return 0, errors.New("otro proceso está aplicando migraciones")
	}
	defer func() { _, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockID) }()

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(files)

	for _, path := range files {
		filename := strings.TrimPrefix(path, "migrations/")
		version, _, ok := strings.Cut(filename, "_")
		if !ok {
			return applied, fmt.Errorf("nombre de migración inválido %s (se espera NNN_descripcion.sql)", filename)
		}
		body, err := migrationFS.ReadFile(path)
		if err != nil {
			return applied, err
		}
		sum := sha256.Sum256(body)
		checksum := hex.EncodeToString(sum[:])

		var existing string
		err = conn.QueryRow(ctx, `SELECT checksum FROM schema_migrations WHERE version = $1`, version).Scan(&existing)
		switch {
		case err == nil && existing == checksum:
			log.Debug().Str("migration", filename).Msg("migración ya aplicada")
			continue
		case err == nil:
			return applied, fmt.Errorf("checksum distinto para %s: registrado %s, actual %s", filename, existing, checksum)
		case !errors.Is(err, pgx.ErrNoRows):
			return applied, fmt.Errorf("consultar schema_migrations: %w", err)
		}

		tx, err := conn.Begin(ctx)
		if err != nil {
			return applied, fmt.Errorf("begin %s: %w", filename, err)
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return applied, fmt.Errorf("aplicar %s: %w", filename, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)`,
			version, filename, checksum); err != nil {
			_ = tx.Rollback(ctx)
			return applied, fmt.Errorf("registrar %s: %w", filename, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return applied, fmt.Errorf("commit %s: %w", filename, err)
		}
		log.Info().Str("migration", filename).Msg("migración aplicada")
		applied++
	}
	return applied, nil
}
