package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

var (
	_ repository.AuthorizationRepository = (*AuthorizationRepo)(nil)
	_ repository.EstablishmentRepository = (*EstablishmentRepo)(nil)
)

// AuthorizationRepo implementación de AuthorizationRepository (usable con pool o tx).
type AuthorizationRepo struct {
	q Querier
}

// NewAuthorizationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuthorizationRepository(q Querier) *AuthorizationRepo {
	return &AuthorizationRepo{q: q}
}

// Create persiste el timbrado.
func (r *AuthorizationRepo) Create(ctx context.Context, a *entity.FiscalAuthorization) error {
	query := `
		INSERT INTO fiscal_authorizations (id, ruc, ruc_check_digit, taxpayer_type, business_name, number,
		                                   valid_from, valid_to, csc_id, csc1, csc2, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		a.ID, a.RUC, a.RUCCheckDigit, a.TaxpayerType, a.BusinessName, a.Number,
		a.ValidFrom, a.ValidTo, a.CSCID, a.CSC1, a.CSC2, a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("timbrado %s ya registrado: %w", a.Number, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert fiscal_authorization: %w", err)
	}
	return nil
}

// GetByID obtiene un timbrado por ID. (nil, nil) si no existe.
func (r *AuthorizationRepo) GetByID(ctx context.Context, id string) (*entity.FiscalAuthorization, error) {
	query := `
		SELECT id, ruc, ruc_check_digit, taxpayer_type, business_name, number,
		       valid_from, valid_to, csc_id, csc1, csc2, is_active, created_at, updated_at
		FROM fiscal_authorizations WHERE id = $1`
	var a entity.FiscalAuthorization
	err := r.q.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.RUC, &a.RUCCheckDigit, &a.TaxpayerType, &a.BusinessName, &a.Number,
		&a.ValidFrom, &a.ValidTo, &a.CSCID, &a.CSC1, &a.CSC2, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal_authorization: %w", err)
	}
	return &a, nil
}

// Update actualiza vigencia, CSC y estado del timbrado.
func (r *AuthorizationRepo) Update(ctx context.Context, a *entity.FiscalAuthorization) error {
	query := `
		UPDATE fiscal_authorizations
		SET business_name = $2, valid_from = $3, valid_to = $4,
		    csc_id = $5, csc1 = $6, csc2 = $7, is_active = $8, updated_at = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, a.ID, a.BusinessName, a.ValidFrom, a.ValidTo, a.CSCID, a.CSC1, a.CSC2, a.IsActive, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update fiscal_authorization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// EstablishmentRepo implementación de EstablishmentRepository.
type EstablishmentRepo struct {
	q Querier
}

// NewEstablishmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEstablishmentRepository(q Querier) *EstablishmentRepo {
	return &EstablishmentRepo{q: q}
}

const establishmentColumns = `id, authorization_id, code, name, address, expedition_codes, created_at`

func scanEstablishment(row pgx.Row) (*entity.Establishment, error) {
	var e entity.Establishment
	if err := row.Scan(&e.ID, &e.AuthorizationID, &e.Code, &e.Name, &e.Address, &e.ExpeditionCodes, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// Create persiste el establecimiento; el código es único dentro del timbrado.
func (r *EstablishmentRepo) Create(ctx context.Context, e *entity.Establishment) error {
	codes := e.ExpeditionCodes
	if codes == nil {
		codes = []string{}
	}
	query := `INSERT INTO establishments (` + establishmentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query, e.ID, e.AuthorizationID, e.Code, e.Name, e.Address, codes, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("establecimiento %s: %w", e.Code, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert establishment: %w", err)
	}
	return nil
}

// GetByID obtiene el establecimiento. (nil, nil) si no existe.
func (r *EstablishmentRepo) GetByID(ctx context.Context, id string) (*entity.Establishment, error) {
	e, err := scanEstablishment(r.q.QueryRow(ctx, `SELECT `+establishmentColumns+` FROM establishments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get establishment: %w", err)
	}
	return e, nil
}

// GetByCode busca por código dentro del timbrado. (nil, nil) si no existe.
func (r *EstablishmentRepo) GetByCode(ctx context.Context, authorizationID, code string) (*entity.Establishment, error) {
	e, err := scanEstablishment(r.q.QueryRow(ctx,
		`SELECT `+establishmentColumns+` FROM establishments WHERE authorization_id = $1 AND code = $2`, authorizationID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get establishment by code: %w", err)
	}
	return e, nil
}

// ListByAuthorization lista los establecimientos del timbrado ordenados por código.
func (r *EstablishmentRepo) ListByAuthorization(ctx context.Context, authorizationID string) ([]*entity.Establishment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+establishmentColumns+` FROM establishments WHERE authorization_id = $1 ORDER BY code`, authorizationID)
	if err != nil {
		return nil, fmt.Errorf("list establishments: %w", err)
	}
	defer rows.Close()

	var list []*entity.Establishment
	for rows.Next() {
		e, err := scanEstablishment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan establishment: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
