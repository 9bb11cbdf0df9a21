package repository

import (
	"context"
	"time"

	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
)

// NumberPoolKey identifica un talonario: establecimiento + tipo de documento.
type NumberPoolKey struct {
	EstablishmentID string
	DocType         entity.DocumentType
}

// NumberRepository define el puerto del Number Pool Store.
// Es el único estado mutable compartido del núcleo; los registros nunca se borran.
type NumberRepository interface {
	// InsertRange inserta los registros en estado FREE. Devuelve ErrDuplicateRange si alguno ya existe.
	InsertRange(ctx context.Context, records []*entity.NumberRecord) (int, error)

	// CountExisting cuenta los números de [start, end] ya existentes para la clave y serie.
	CountExisting(ctx context.Context, key NumberPoolKey, series string, start, end int64) (int, error)

	// LockPool serializa asignadores concurrentes de la misma clave hasta el fin de la transacción.
	// Fuera de una transacción no tiene efecto.
	LockPool(ctx context.Context, key NumberPoolKey) error

	// ListFree devuelve hasta limit registros FREE en orden ascendente (número, serie).
	ListFree(ctx context.Context, key NumberPoolKey, limit int) ([]*entity.NumberRecord, error)

	GetByID(ctx context.Context, id string) (*entity.NumberRecord, error)

	// Transition cambia el estado solo si el registro está en from (compare-and-swap).
	// documentID vacío deja la columna en NULL. Devuelve false si el estado no coincidía.
	Transition(ctx context.Context, id, from, to, documentID string, at time.Time) (bool, error)

	// Stats cuenta números libres y reservados de la clave.
	Stats(ctx context.Context, key NumberPoolKey) (free, reserved int, err error)
}

// SecurityCodeRepository persiste los códigos de seguridad acuñados.
type SecurityCodeRepository interface {
	// Insert devuelve domain.ErrDuplicate si el código ya existe.
	Insert(ctx context.Context, rec *entity.SecurityCodeRecord) error
}
