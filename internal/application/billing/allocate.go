package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

// Allocate asigna al borrador el menor número libre de su talonario (Draft → Numbered).
// La lectura del próximo número y la reserva ocurren en la misma transacción.
func (s *Service) Allocate(ctx context.Context, id string) (*entity.Document, error) {
	var doc *entity.Document
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		var err error
		doc, err = s.allocateInTx(ctx, repos, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("number", doc.NumberLabel()).Msg("número asignado")
	return doc, nil
}

func (s *Service) allocateInTx(ctx context.Context, repos repository.Repositories, id string) (*entity.Document, error) {
	doc, err := repos.Documents.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("documento %s: %w", id, domain.ErrNotFound)
	}
	if doc.SequenceNumber != nil && doc.Status != entity.StatusDraft && doc.Status != entity.StatusVoided {
		return doc, nil
	}
	if doc.Status != entity.StatusDraft {
		return nil, fmt.Errorf("%w: no se puede numerar un documento en %s", domain.ErrInvalidTransition, doc.Status)
	}

	rec, err := s.allocator.ReserveNextInTx(ctx, repos, doc.EstablishmentID, doc.DocType, doc.ID)
	if err != nil {
		return nil, err
	}
	seq := rec.SequenceNumber
	doc.SequenceNumber = &seq
	doc.Series = rec.Series
	doc.NumberRecordID = rec.ID
	doc.Status = entity.StatusNumbered
	doc.UpdatedAt = s.now()
	if err := repos.Documents.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("actualizar documento: %w", err)
	}
	return doc, nil
}
