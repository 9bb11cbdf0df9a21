// Package numbering administra el talonario electrónico: generación de rangos autorizados
// y asignación estrictamente ascendente de números, sin duplicados bajo concurrencia.
package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

// GenerateRangeInput parámetros de alta de un rango autorizado.
type GenerateRangeInput struct {
	AuthorizationID string
	EstablishmentID string
	DocType         entity.DocumentType
	Series          string
	Start           int64
	End             int64
}

// PoolStatus resumen del talonario para operadores.
type PoolStatus struct {
	EstablishmentID string              `json:"establishment_id"`
	DocType         entity.DocumentType `json:"doc_type"`
	Free            int                 `json:"free"`
	Reserved        int                 `json:"reserved"`
	NextFree        *int64              `json:"next_free,omitempty"`
}

// Allocator implementa el Number Allocator sobre un repository.Store.
type Allocator struct {
	store repository.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewAllocator crea el asignador.
func NewAllocator(store repository.Store, log zerolog.Logger) *Allocator {
	return &Allocator{
		store: store,
		log:   log.With().Str("component", "numbering").Logger(),
		now:   time.Now,
	}
}

// GenerateRange inserta en estado FREE los números [Start, End] de la clave.
func (a *Allocator) GenerateRange(ctx context.Context, in GenerateRangeInput) (int, error) {
	if in.Start < 1 || in.End < in.Start || in.End > entity.MaxSequenceNumber {
		return 0, fmt.Errorf("%w: [%d, %d]", domain.ErrInvalidRange, in.Start, in.End)
	}
	if !in.DocType.Valid() {
		return 0, fmt.Errorf("%w: tipo de documento %d", domain.ErrInvalidInput, in.DocType)
	}
	key := repository.NumberPoolKey{EstablishmentID: in.EstablishmentID, DocType: in.DocType}

	var count int
	err := a.store.RunInTx(ctx, func(repos repository.Repositories) error {
		est, err := repos.Establishments.GetByID(ctx, in.EstablishmentID)
		if err != nil {
			return err
		}
		if est == nil {
			return fmt.Errorf("establecimiento %s: %w", in.EstablishmentID, domain.ErrNotFound)
		}
		if est.AuthorizationID != in.AuthorizationID {
			return fmt.Errorf("%w: el establecimiento no pertenece al timbrado", domain.ErrInvalidInput)
		}
		if err := repos.Numbers.LockPool(ctx, key); err != nil {
			return err
		}
		existing, err := repos.Numbers.CountExisting(ctx, key, in.Series, in.Start, in.End)
		if err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %d números ya existen en [%d, %d]", domain.ErrDuplicateRange, existing, in.Start, in.End)
		}

		now := a.now()
		records := make([]*entity.NumberRecord, 0, in.End-in.Start+1)
		for n := in.Start; n <= in.End; n++ {
			records = append(records, &entity.NumberRecord{
				ID:              uuid.New().String(),
				AuthorizationID: in.AuthorizationID,
				EstablishmentID: in.EstablishmentID,
				DocType:         in.DocType,
				Series:          in.Series,
				SequenceNumber:  n,
				State:           entity.NumberStateFree,
				CreatedAt:       now,
			})
		}
		count, err = repos.Numbers.InsertRange(ctx, records)
		return err
	})
	if err != nil {
		return 0, err
	}
	a.log.Info().
		Str("establishment_id", in.EstablishmentID).
		Int("doc_type", int(in.DocType)).
		Str("series", in.Series).
		Int64("start", in.Start).
		Int64("end", in.End).
		Msg("rango de numeración generado")
	return count, nil
}

// NextAvailable devuelve el menor número libre de la clave sin reservarlo.
func (a *Allocator) NextAvailable(ctx context.Context, establishmentID string, docType entity.DocumentType) (*entity.NumberRecord, error) {
	return nextAvailable(ctx, a.store.Repositories(), repository.NumberPoolKey{EstablishmentID: establishmentID, DocType: docType})
}

func nextAvailable(ctx context.Context, repos repository.Repositories, key repository.NumberPoolKey) (*entity.NumberRecord, error) {
	free, err := repos.Numbers.ListFree(ctx, key, 1)
	if err != nil {
		return nil, err
	}
	if len(free) == 0 {
		return nil, fmt.Errorf("%w (establecimiento %s, tipo %d)", domain.ErrPoolExhausted, key.EstablishmentID, key.DocType)
	}
	return free[0], nil
}

// AllocateMany devuelve los count menores números libres sin reservarlos.
func (a *Allocator) AllocateMany(ctx context.Context, establishmentID string, docType entity.DocumentType, count int) ([]*entity.NumberRecord, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: cantidad debe ser positiva", domain.ErrInvalidInput)
	}
	key := repository.NumberPoolKey{EstablishmentID: establishmentID, DocType: docType}
	free, err := a.store.Repositories().Numbers.ListFree(ctx, key, count)
	if err != nil {
		return nil, err
	}
	if len(free) < count {
		return nil, fmt.Errorf("%w: se pidieron %d, hay %d", domain.ErrInsufficientNumbers, count, len(free))
	}
	return free, nil
}

// Reserve pasa todos los registros de FREE a RESERVED de forma atómica.
// Si alguno ya estaba reservado no se reserva ninguno.
func (a *Allocator) Reserve(ctx context.Context, records []*entity.NumberRecord) error {
	return a.store.RunInTx(ctx, func(repos repository.Repositories) error {
		return a.ReserveInTx(ctx, repos, records)
	})
}

// ReserveInTx es Reserve dentro de la transacción del llamador.
func (a *Allocator) ReserveInTx(ctx context.Context, repos repository.Repositories, records []*entity.NumberRecord) error {
	now := a.now()
	for _, rec := range records {
		ok, err := repos.Numbers.Transition(ctx, rec.ID, entity.NumberStateFree, entity.NumberStateReserved, rec.DocumentID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyReserved, describe(rec))
		}
		rec.State = entity.NumberStateReserved
		rec.ReservedAt = &now
	}
	return nil
}

// Release devuelve los registros a FREE. Sólo se liberan números sin documento o cuyo
// documento ya fue anulado antes de la entrega: ErrDocumentLocked si el documento fue
// entregado o resuelto por la SET, ErrInvalidTransition si sigue vivo (usar Service.Void).
func (a *Allocator) Release(ctx context.Context, records []*entity.NumberRecord) error {
	return a.store.RunInTx(ctx, func(repos repository.Repositories) error {
		for _, rec := range records {
			stored, err := repos.Numbers.GetByID(ctx, rec.ID)
			if err != nil {
				return err
			}
			if stored == nil {
				return fmt.Errorf("número %s: %w", rec.ID, domain.ErrNotFound)
			}
			if stored.DocumentID == "" {
				continue
			}
			doc, err := repos.Documents.GetForUpdate(ctx, stored.DocumentID)
			if err != nil {
				return err
			}
			if doc == nil {
				continue
			}
			if doc.IsLocked() {
				return fmt.Errorf("%w: %s", domain.ErrDocumentLocked, doc.ID)
			}
			if doc.Status != entity.StatusVoided {
				return fmt.Errorf("%w: el documento %s está en %s; anúlelo para liberar el número", domain.ErrInvalidTransition, doc.ID, doc.Status)
			}
		}
		return a.ReleaseInTx(ctx, repos, records)
	})
}

// ReleaseInTx libera sin verificar el documento; el ciclo de vida aplica su propia guarda.
func (a *Allocator) ReleaseInTx(ctx context.Context, repos repository.Repositories, records []*entity.NumberRecord) error {
	now := a.now()
	for _, rec := range records {
		ok, err := repos.Numbers.Transition(ctx, rec.ID, entity.NumberStateReserved, entity.NumberStateFree, "", now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNotReserved, describe(rec))
		}
		rec.State = entity.NumberStateFree
		rec.DocumentID = ""
		rec.ReleasedAt = &now
	}
	return nil
}

// ReserveNextInTx toma el menor número libre y lo reserva para documentID en la transacción
// del llamador. El bloqueo por clave serializa asignadores concurrentes; el CAS sobre el estado
// es la garantía final de que ningún número se asigna dos veces.
func (a *Allocator) ReserveNextInTx(ctx context.Context, repos repository.Repositories, establishmentID string, docType entity.DocumentType, documentID string) (*entity.NumberRecord, error) {
	key := repository.NumberPoolKey{EstablishmentID: establishmentID, DocType: docType}
	if err := repos.Numbers.LockPool(ctx, key); err != nil {
		return nil, err
	}
	rec, err := nextAvailable(ctx, repos, key)
	if err != nil {
		return nil, err
	}
	rec.DocumentID = documentID
	if err := a.ReserveInTx(ctx, repos, []*entity.NumberRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// PoolStatus cuenta libres/reservados y el próximo número a asignar.
func (a *Allocator) PoolStatus(ctx context.Context, establishmentID string, docType entity.DocumentType) (*PoolStatus, error) {
	key := repository.NumberPoolKey{EstablishmentID: establishmentID, DocType: docType}
	repos := a.store.Repositories()
	free, reserved, err := repos.Numbers.Stats(ctx, key)
	if err != nil {
		return nil, err
	}
	st := &PoolStatus{EstablishmentID: establishmentID, DocType: docType, Free: free, Reserved: reserved}
	next, err := repos.Numbers.ListFree(ctx, key, 1)
	if err != nil {
		return nil, err
	}
	if len(next) > 0 {
		n := next[0].SequenceNumber
		st.NextFree = &n
	}
	return st, nil
}

func describe(rec *entity.NumberRecord) string {
	if rec.Series != "" {
		return fmt.Sprintf("%s/%s", rec.Series, entity.PadSequence(rec.SequenceNumber))
	}
	return entity.PadSequence(rec.SequenceNumber)
}
