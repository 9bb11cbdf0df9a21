package repository

import (
	"context"

	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
)

// AuthorizationRepository define el puerto de persistencia para timbrados.
// GetByID devuelve (nil, nil) si no existe.
type AuthorizationRepository interface {
	Create(ctx context.Context, auth *entity.FiscalAuthorization) error
	GetByID(ctx context.Context, id string) (*entity.FiscalAuthorization, error)
	Update(ctx context.Context, auth *entity.FiscalAuthorization) error
}

// EstablishmentRepository define el puerto de persistencia para establecimientos.
type EstablishmentRepository interface {
	Create(ctx context.Context, est *entity.Establishment) error
	GetByID(ctx context.Context, id string) (*entity.Establishment, error)
	// GetByCode busca el establecimiento por código dentro del timbrado.
	GetByCode(ctx context.Context, authorizationID, code string) (*entity.Establishment, error)
	ListByAuthorization(ctx context.Context, authorizationID string) ([]*entity.Establishment, error)
}
