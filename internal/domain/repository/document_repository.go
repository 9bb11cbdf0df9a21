package repository

import (
	"context"
	"time"

	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia para documentos y sus líneas.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	CreateLines(ctx context.Context, lines []*entity.DocumentLine) error
	// ReplaceLines borra las líneas del documento e inserta las nuevas.
	ReplaceLines(ctx context.Context, documentID string, lines []*entity.DocumentLine) error

	// GetByID devuelve (nil, nil) si no existe.
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	// GetForUpdate bloquea la fila hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Document, error)
	GetLines(ctx context.Context, documentID string) ([]*entity.DocumentLine, error)

	// Update persiste cabecera, totales y campos de ciclo de vida.
	Update(ctx context.Context, doc *entity.Document) error
	// UpdateIfStatus persiste solo si el estado almacenado es expected. Devuelve false si no coincidía.
	UpdateIfStatus(ctx context.Context, doc *entity.Document, expected entity.DocumentStatus) (bool, error)

	// ListReadyForBatch devuelve documentos SIGNED sin lote, los más antiguos primero.
	ListReadyForBatch(ctx context.Context, limit int) ([]*entity.Document, error)
	ListByBatch(ctx context.Context, batchID string) ([]*entity.Document, error)
	// ListPendingBatchIDs devuelve los lotes con documentos en RECEIVED o PROCESSING.
	ListPendingBatchIDs(ctx context.Context) ([]string, error)
	// ListStuck devuelve documentos en DISPATCHING con SubmittedAt anterior a before.
	ListStuck(ctx context.Context, before time.Time) ([]*entity.Document, error)
}
