package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

// CreateNote crea en DRAFT una nota de crédito o débito asociada a in.RelatedDocumentID.
// El origen debe tener CDC y su saldo pendiente cubrir el total de la nota; una nota de
// crédito descuenta ese saldo en la misma transacción.
func (s *Service) CreateNote(ctx context.Context, in DraftInput) (*entity.Document, error) {
	if !in.DocType.IsNote() {
		return nil, fmt.Errorf("%w: tipo %d no es nota de crédito/débito", domain.ErrInvalidInput, in.DocType)
	}
	if err := checkDraftKind(in); err != nil {
		return nil, err
	}
	doc, lines, err := s.prepare(ctx, s.store.Repositories(), in)
	if err != nil {
		return nil, err
	}
	err = s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		return s.createInTx(ctx, repos, in, doc, lines)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("origin_id", in.RelatedDocumentID).Int("doc_type", int(doc.DocType)).
		Str("total", doc.Total.String()).Msg("nota creada")
	return doc, nil
}

// chargeOrigin valida la nota contra su origen y, si es de crédito, descuenta el saldo.
func (s *Service) chargeOrigin(ctx context.Context, repos repository.Repositories, origin, note *entity.Document) error {
	if origin.ControlCode == "" {
		return fmt.Errorf("%w: %s", domain.ErrOriginNotSigned, origin.ID)
	}
	if note.Total.GreaterThan(origin.RemainingBalance) {
		return fmt.Errorf("%w: saldo %s, nota %s", domain.ErrExceedsOriginBalance, origin.RemainingBalance, note.Total)
	}
	if origin.DocType == entity.DocTypeCreditNote {
		return fmt.Errorf("%w: el origen no puede ser una nota de crédito", domain.ErrInvalidInput)
	}
	if origin.Status == entity.StatusVoided || origin.AuthorityState == entity.AuthorityRejected {
		return fmt.Errorf("%w: el origen está anulado o rechazado", domain.ErrInvalidTransition)
	}
	if origin.Currency != note.Currency {
		return fmt.Errorf("%w: moneda %s distinta a la del origen (%s)", domain.ErrInvalidInput, note.Currency, origin.Currency)
	}
	if note.DocType != entity.DocTypeCreditNote {
		return nil
	}
	origin.RemainingBalance = origin.RemainingBalance.Sub(note.Total)
	origin.UpdatedAt = s.now()
	return repos.Documents.Update(ctx, origin)
}
