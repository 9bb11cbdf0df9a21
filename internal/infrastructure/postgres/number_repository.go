package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

var (
	_ repository.NumberRepository       = (*NumberRepo)(nil)
	_ repository.SecurityCodeRepository = (*SecurityCodeRepo)(nil)
)

// NumberRepo implementación del talonario electrónico sobre number_records.
type NumberRepo struct {
	q Querier
}

// NewNumberRepository construye el adaptador. Pasar pool o tx (Querier).
func NewNumberRepository(q Querier) *NumberRepo {
	return &NumberRepo{q: q}
}

var numberCopyColumns = []string{
	"id", "authorization_id", "establishment_id", "doc_type", "series",
	"sequence_number", "state", "created_at",
}

const numberColumns = `id, authorization_id, establishment_id, doc_type, series, sequence_number, state,
	COALESCE(document_id, ''), reserved_at, released_at, created_at`

func scanNumber(row pgx.Row) (*entity.NumberRecord, error) {
	var (
		n       entity.NumberRecord
		docType int16
	)
	err := row.Scan(&n.ID, &n.AuthorizationID, &n.EstablishmentID, &docType, &n.Series, &n.SequenceNumber,
		&n.State, &n.DocumentID, &n.ReservedAt, &n.ReleasedAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.DocType = entity.DocumentType(docType)
	return &n, nil
}

// InsertRange inserta los registros con COPY. Un duplicado aborta la copia completa.
func (r *NumberRepo) InsertRange(ctx context.Context, records []*entity.NumberRecord) (int, error) {
	n, err := r.q.CopyFrom(ctx, pgx.Identifier{"number_records"}, numberCopyColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{rec.ID, rec.AuthorizationID, rec.EstablishmentID, int16(rec.DocType), rec.Series,
				rec.SequenceNumber, rec.State, rec.CreatedAt}, nil
		}))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrDuplicateRange, err)
		}
		return 0, fmt.Errorf("copy number_records: %w", err)
	}
	return int(n), nil
}

// CountExisting cuenta los números de [start, end] ya cargados para la clave y serie.
func (r *NumberRepo) CountExisting(ctx context.Context, key repository.NumberPoolKey, series string, start, end int64) (int, error) {
	query := `
		SELECT count(*) FROM number_records
		WHERE establishment_id = $1 AND doc_type = $2 AND series = $3 AND sequence_number BETWEEN $4 AND $5`
	var n int
	if err := r.q.QueryRow(ctx, query, key.EstablishmentID, int16(key.DocType), series, start, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("count number_records: %w", err)
	}
	return n, nil
}

// LockPool toma un advisory lock transaccional por clave; se libera con commit o rollback.
func (r *NumberRepo) LockPool(ctx context.Context, key repository.NumberPoolKey) error {
	lockKey := fmt.Sprintf("number_pool:%s:%d", key.EstablishmentID, key.DocType)
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("lock number pool: %w", err)
	}
	return nil
}

// ListFree devuelve hasta limit números libres en orden (número, serie). limit <= 0 = todos.
func (r *NumberRepo) ListFree(ctx context.Context, key repository.NumberPoolKey, limit int) ([]*entity.NumberRecord, error) {
	query := `SELECT ` + numberColumns + ` FROM number_records
		WHERE establishment_id = $1 AND doc_type = $2 AND state = 'FREE'
		ORDER BY sequence_number, series`
	args := []any{key.EstablishmentID, int16(key.DocType)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list free numbers: %w", err)
	}
	defer rows.Close()

	var list []*entity.NumberRecord
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan number_record: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// GetByID obtiene el registro. (nil, nil) si no existe.
func (r *NumberRepo) GetByID(ctx context.Context, id string) (*entity.NumberRecord, error) {
	n, err := scanNumber(r.q.QueryRow(ctx, `SELECT `+numberColumns+` FROM number_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get number_record: %w", err)
	}
	return n, nil
}

// Transition es el compare-and-swap del estado: sólo actualiza si el estado actual es from.
func (r *NumberRepo) Transition(ctx context.Context, id, from, to, documentID string, at time.Time) (bool, error) {
	query := `
		UPDATE number_records
		SET state       = $3::text,
		    document_id = $4,
		    reserved_at = CASE WHEN $3::text = 'RESERVED' THEN $5::timestamptz ELSE reserved_at END,
		    released_at = CASE WHEN $3::text = 'FREE' THEN $5::timestamptz ELSE released_at END
		WHERE id = $1 AND state = $2`
	tag, err := r.q.Exec(ctx, query, id, from, to, nullIfEmpty(documentID), at)
	if err != nil {
		return false, fmt.Errorf("transition number_record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Stats cuenta libres y reservados de la clave.
func (r *NumberRepo) Stats(ctx context.Context, key repository.NumberPoolKey) (free, reserved int, err error) {
	query := `
		SELECT count(*) FILTER (WHERE state = 'FREE'),
		       count(*) FILTER (WHERE state = 'RESERVED')
		FROM number_records WHERE establishment_id = $1 AND doc_type = $2`
	if err := r.q.QueryRow(ctx, query, key.EstablishmentID, int16(key.DocType)).Scan(&free, &reserved); err != nil {
		return 0, 0, fmt.Errorf("stats number_records: %w", err)
	}
	return free, reserved, nil
}

// SecurityCodeRepo persiste los códigos de seguridad (PK = código).
type SecurityCodeRepo struct {
	q Querier
}

// NewSecurityCodeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSecurityCodeRepository(q Querier) *SecurityCodeRepo {
	return &SecurityCodeRepo{q: q}
}

// Insert devuelve domain.ErrDuplicate si el código ya fue acuñado.
func (r *SecurityCodeRepo) Insert(ctx context.Context, rec *entity.SecurityCodeRecord) error {
	_, err := r.q.Exec(ctx, `INSERT INTO security_codes (code, document_id, created_at) VALUES ($1, $2, $3)`,
		rec.Code, rec.DocumentID, rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert security_code: %w", err)
	}
	return nil
}
