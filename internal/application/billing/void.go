package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
)

// Void anula un documento no entregado (Draft/Numbered/Signed) o rechazado por la SET,
// devolviendo su número al talonario.
func (s *Service) Void(ctx context.Context, id, reason string) (*entity.Document, error) {
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
		if err := checkVoidable(doc); err != nil {
			return err
		}

		if doc.NumberRecordID != "" {
			rec, err := repos.Numbers.GetByID(ctx, doc.NumberRecordID)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("número %s: %w", doc.NumberRecordID, domain.ErrNotFound)
			}
			if err := s.allocator.ReleaseInTx(ctx, repos, []*entity.NumberRecord{rec}); err != nil {
				return err
			}
		}
		if doc.DocType == entity.DocTypeCreditNote && doc.RelatedDocumentID != "" {
			if err := s.restoreOriginBalance(ctx, repos, doc.RelatedDocumentID, doc); err != nil {
				return err
			}
		}

		now := s.now()
		doc.Status = entity.StatusVoided
		doc.VoidKind = entity.VoidReleased
		doc.VoidReason = reason
		doc.VoidedAt = &now
		doc.RemainingBalance = decimal.Zero
		doc.UpdatedAt = now
		return repos.Documents.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("number", doc.NumberLabel()).Msg("documento anulado, número liberado")
	return doc, nil
}

func checkVoidable(doc *entity.Document) error {
	if doc.Status == entity.StatusVoided {
		return fmt.Errorf("%w: el documento ya está anulado", domain.ErrInvalidTransition)
	}
	// Un rechazo de la SET deja el documento sin efecto fiscal: se anula y libera aunque esté bloqueado.
	if doc.Status == entity.StatusResolved && doc.AuthorityState == entity.AuthorityRejected {
		return nil
	}
	if doc.IsLocked() {
		return fmt.Errorf("%w: use VoidWithCredit para documentos aprobados", domain.ErrDocumentLocked)
	}
	switch doc.Status {
	case entity.StatusDraft, entity.StatusNumbered, entity.StatusSigned:
		return nil
	}
	return fmt.Errorf("%w: no se puede anular un documento en %s", domain.ErrInvalidTransition, doc.Status)
}

func (s *Service) restoreOriginBalance(ctx context.Context, repos repository.Repositories, originID string, note *entity.Document) error {
	origin, err := repos.Documents.GetForUpdate(ctx, originID)
	if err != nil {
		return err
	}
	if origin == nil || origin.Status == entity.StatusVoided {
		return nil
	}
	origin.RemainingBalance = origin.RemainingBalance.Add(note.Total)
	origin.UpdatedAt = s.now()
	return repos.Documents.Update(ctx, origin)
}

// VoidWithCreditResult documento original anulado y la nota de crédito que lo compensa.
type VoidWithCreditResult struct {
	Original   *entity.Document `json:"original"`
	CreditNote *entity.Document `json:"credit_note"`
}

// VoidWithCredit anula un documento aprobado cuyo plazo de cancelación ya venció: en lugar de
// liberar el número emite una nota de crédito vinculada con las mismas líneas. La nota se
// numera en la misma transacción y se firma después, fuera de ella.
func (s *Service) VoidWithCredit(ctx context.Context, id, reason string) (*VoidWithCreditResult, error) {
	var original, note *entity.Document
	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		var err error
		original, err = repos.Documents.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if original == nil {
			return fmt.Errorf("documento %s: %w", id, domain.ErrNotFound)
		}
		if original.Status != entity.StatusResolved || original.AuthorityState != entity.AuthorityApproved {
			return fmt.Errorf("%w: sólo documentos aprobados se anulan con nota de crédito", domain.ErrInvalidTransition)
		}
		if original.DocType == entity.DocTypeCreditNote {
			return fmt.Errorf("%w: una nota de crédito no se compensa con otra", domain.ErrInvalidTransition)
		}
		now := s.now()
		since := original.IssueDate
		if original.ResolvedAt != nil {
			since = *original.ResolvedAt
		}
		if now.Sub(since) <= s.cfg.VoidByCreditAfter {
			return fmt.Errorf("%w: el documento aún está dentro del plazo de cancelación (%s)", domain.ErrInvalidTransition, s.cfg.VoidByCreditAfter)
		}
		if _, err := s.fiscalContext(ctx, repos, original.AuthorizationID, original.EstablishmentID, original.ExpeditionCode, now); err != nil {
			return err
		}

		lines, err := repos.Documents.GetLines(ctx, original.ID)
		if err != nil {
			return err
		}
		note, lines = creditNoteFor(original, lines, now)
		if note.Total.GreaterThan(original.RemainingBalance) {
			return fmt.Errorf("%w: saldo %s, nota %s", domain.ErrExceedsOriginBalance, original.RemainingBalance, note.Total)
		}
		if err := persistNew(ctx, repos, note, lines); err != nil {
			return err
		}
		if note, err = s.allocateInTx(ctx, repos, note.ID); err != nil {
			return err
		}

		original.RemainingBalance = original.RemainingBalance.Sub(note.Total)
		original.Status = entity.StatusVoided
		original.VoidKind = entity.VoidByCredit
		original.VoidReason = reason
		original.VoidedAt = &now
		original.UpdatedAt = now
		return repos.Documents.Update(ctx, original)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", original.ID).Str("credit_note_id", note.ID).Msg("documento anulado por nota de crédito")

	result := &VoidWithCreditResult{Original: original, CreditNote: note}
	signed, err := s.Sign(ctx, note.ID)
	if err != nil {
		return result, fmt.Errorf("nota de crédito %s numerada pero no firmada: %w", note.ID, err)
	}
	result.CreditNote = signed
	return result, nil
}

// creditNoteFor copia importes y líneas del original en una nota de crédito nueva.
func creditNoteFor(original *entity.Document, lines []*entity.DocumentLine, now time.Time) (*entity.Document, []*entity.DocumentLine) {
	note := &entity.Document{
		ID:                 uuid.New().String(),
		DocType:            entity.DocTypeCreditNote,
		AuthorizationID:    original.AuthorizationID,
		EstablishmentID:    original.EstablishmentID,
		EstablishmentCode:  original.EstablishmentCode,
		ExpeditionCode:     original.ExpeditionCode,
		IssueDate:          now,
		Currency:           original.Currency,
		Counterparty:       original.Counterparty,
		Exempt:             original.Exempt,
		Base5:              original.Base5,
		VAT5:               original.VAT5,
		Base10:             original.Base10,
		VAT10:              original.VAT10,
		RawTotal:           original.RawTotal,
		RoundingAdjustment: original.RoundingAdjustment,
		Total:              original.Total,
		RemainingBalance:   original.Total,
		Status:             entity.StatusDraft,
		BatchState:         entity.BatchNone,
		AuthorityState:     entity.AuthorityNone,
		VoidKind:           entity.VoidNone,
		RelatedDocumentID:  original.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	copied := make([]*entity.DocumentLine, len(lines))
	for i, l := range lines {
		cp := *l
		cp.ID = uuid.New().String()
		cp.DocumentID = note.ID
		copied[i] = &cp
	}
	return note, copied
}
