package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

var _ repository.Store = (*Store)(nil)

// Store entrega los repositorios PostgreSQL y ejecuta callbacks dentro de una transacción.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore construye el store con el pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Repositories devuelve repositorios atados al pool (cada sentencia en su propia transacción).
func (s *Store) Repositories() repository.Repositories {
	return bind(s.pool)
}

// RunInTx inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (s *Store) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func bind(q Querier) repository.Repositories {
	return repository.Repositories{
		Authorizations: NewAuthorizationRepository(q),
		Establishments: NewEstablishmentRepository(q),
		Numbers:        NewNumberRepository(q),
		SecurityCodes:  NewSecurityCodeRepository(q),
		Documents:      NewDocumentRepository(q),
	}
}
