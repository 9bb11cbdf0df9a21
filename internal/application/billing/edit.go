package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

// EditInput cambios sobre un documento no entregado. Los campos nil no se modifican.
type EditInput struct {
	Counterparty *entity.Counterparty
	IssueDate    *time.Time
	Lines        []LineInput // nil = sin cambios
	NetPrices    bool
}

// EditDraft modifica un documento en Draft, Numbered o Signed. Un documento firmado pierde
// la firma y vuelve a Numbered (conserva su número). Bloqueado → ErrDocumentLocked.
func (s *Service) EditDraft(ctx context.Context, id string, in EditInput) (*entity.Document, error) {
	var doc *entity.Document
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		var err error
		doc, err = repos.Documents.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("documento %s: %w", id, domain.ErrNotFound)
		}
		if doc.IsLocked() {
			return domain.ErrDocumentLocked
		}
		switch doc.Status {
		case entity.StatusDraft, entity.StatusNumbered, entity.StatusSigned:
		default:
			return fmt.Errorf("%w: no se puede editar un documento en %s", domain.ErrInvalidTransition, doc.Status)
		}

		if in.Counterparty != nil {
			if strings.TrimSpace(in.Counterparty.Name) == "" {
				return fmt.Errorf("%w: el receptor debe tener nombre", domain.ErrInvalidInput)
			}
			doc.Counterparty = *in.Counterparty
		}
		if in.IssueDate != nil {
			if _, err := s.fiscalContext(ctx, repos, doc.AuthorizationID, doc.EstablishmentID, doc.ExpeditionCode, *in.IssueDate); err != nil {
				return err
			}
			doc.IssueDate = *in.IssueDate
		}
		if in.Lines != nil {
			if err := s.replaceLines(ctx, repos, doc, in); err != nil {
				return err
			}
		}

		if doc.Status == entity.StatusSigned {
			doc.ClearSignature()
			doc.Status = entity.StatusNumbered
		}
		doc.UpdatedAt = s.now()
		return repos.Documents.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("status", string(doc.Status)).Msg("documento editado")
	return doc, nil
}

func (s *Service) replaceLines(ctx context.Context, repos repository.Repositories, doc *entity.Document, in EditInput) error {
	if doc.Total.GreaterThan(doc.RemainingBalance) {
		return fmt.Errorf("%w: el documento ya tiene notas de crédito asociadas", domain.ErrConflict)
	}
	oldTotal := doc.Total
	lines, err := s.computeLines(doc, in.Lines, !in.NetPrices)
	if err != nil {
		return err
	}
	if doc.DocType.IsNote() && doc.RelatedDocumentID != "" {
		origin, err := repos.Documents.GetForUpdate(ctx, doc.RelatedDocumentID)
		if err != nil {
			return err
		}
		if origin == nil {
			return fmt.Errorf("documento de origen %s: %w", doc.RelatedDocumentID, domain.ErrNotFound)
		}
		if doc.DocType == entity.DocTypeCreditNote {
			origin.RemainingBalance = origin.RemainingBalance.Add(oldTotal)
		}
		if err := s.chargeOrigin(ctx, repos, origin, doc); err != nil {
			return err
		}
	}
	return repos.Documents.ReplaceLines(ctx, doc.ID, lines)
}
