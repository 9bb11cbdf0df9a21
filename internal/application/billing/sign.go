package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
	domsifen "github.com/jhoicas/facturacion-sifen/internal/domain/sifen"
)

// Sign acuña el código de seguridad, arma el CDC y firma el XML (Numbered → Signed).
// Es idempotente: sobre un documento ya firmado devuelve los artefactos existentes.
func (s *Service) Sign(ctx context.Context, id string) (*entity.Document, error) {
	repos := s.store.Repositories()
	doc, lines, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsSigned() && doc.Status != entity.StatusVoided {
		return doc, nil
	}
	if doc.Status != entity.StatusNumbered {
		return nil, fmt.Errorf("%w: no se puede firmar un documento en %s", domain.ErrInvalidTransition, doc.Status)
	}

	payload, err := s.signPayload(ctx, repos, doc, lines)
	if err != nil {
		return nil, err
	}
	if err := domsifen.ValidateDocument(doc, lines, s.tax); err != nil {
		return nil, err
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 1. Código de seguridad + CDC
	// ═══════════════════════════════════════════════════════════════════════════
	code, err := s.mintSecurityCode(ctx, repos, doc.ID)
	if err != nil {
		return nil, err
	}
	cdc, dv, err := s.cdc.Generate(domsifen.CDCParams{
		DocType:        int(doc.DocType),
		RUC:            payload.Authorization.RUC,
		RUCCheckDigit:  payload.Authorization.RUCCheckDigit,
		Establishment:  doc.EstablishmentCode,
		Expedition:     doc.ExpeditionCode,
		SequenceNumber: *doc.SequenceNumber,
		TaxpayerType:   payload.Authorization.TaxpayerType,
		IssueDate:      doc.IssueDate,
		EmissionType:   s.cfg.EmissionType,
		SecurityCode:   code,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	doc.SecurityCode = code
	doc.ControlCode = cdc
	s.log.Debug().Str("document_id", doc.ID).Str("cdc", cdc).Int("dv", dv).Msg("CDC generado")

	// ═══════════════════════════════════════════════════════════════════════════
	// 2. Firma XML (fuera de cualquier transacción)
	// ═══════════════════════════════════════════════════════════════════════════
	var artifact *SignedArtifact
	err = s.withRetry(ctx, "firma", func(ctx context.Context) error {
		var signErr error
		artifact, signErr = s.signer.Sign(ctx, payload)
		return signErr
	})
	if err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("firma fallida, el documento queda numerado")
		return nil, fmt.Errorf("firmar documento: %w", err)
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 3. Persistir sólo si nadie lo firmó en paralelo
	// ═══════════════════════════════════════════════════════════════════════════
	doc.SignedRef = artifact.Ref
	doc.SignedXML = string(artifact.XML)
	doc.QRLink = artifact.QRLink
	doc.Status = entity.StatusSigned
	doc.UpdatedAt = s.now()
	ok, err := repos.Documents.UpdateIfStatus(ctx, doc, entity.StatusNumbered)
	if err != nil {
		return nil, fmt.Errorf("actualizar documento: %w", err)
	}
	if !ok {
		current, err := repos.Documents.GetByID(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.IsSigned() {
			return current, nil
		}
		return nil, fmt.Errorf("%w: el documento cambió de estado durante la firma", domain.ErrConflict)
	}
	s.log.Info().Str("document_id", doc.ID).Str("cdc", doc.ControlCode).Msg("documento firmado")
	return doc, nil
}

func (s *Service) signPayload(ctx context.Context, repos repository.Repositories, doc *entity.Document, lines []*entity.DocumentLine) (SignPayload, error) {
	auth, err := repos.Authorizations.GetByID(ctx, doc.AuthorizationID)
	if err != nil {
		return SignPayload{}, err
	}
	if auth == nil {
		return SignPayload{}, fmt.Errorf("timbrado %s: %w", doc.AuthorizationID, domain.ErrNotFound)
	}
	est, err := repos.Establishments.GetByID(ctx, doc.EstablishmentID)
	if err != nil {
		return SignPayload{}, err
	}
	if est == nil {
		return SignPayload{}, fmt.Errorf("establecimiento %s: %w", doc.EstablishmentID, domain.ErrNotFound)
	}
	payload := SignPayload{Document: doc, Lines: lines, Authorization: auth, Establishment: est}
	if doc.DocType.IsNote() && doc.RelatedDocumentID != "" {
		origin, err := repos.Documents.GetByID(ctx, doc.RelatedDocumentID)
		if err != nil {
			return SignPayload{}, err
		}
		if origin == nil || origin.ControlCode == "" {
			return SignPayload{}, domain.ErrOriginNotSigned
		}
		payload.Origin = origin
	}
	return payload, nil
}

// mintSecurityCode inserta un código aleatorio único; ante colisión genera otro, con un máximo de intentos.
func (s *Service) mintSecurityCode(ctx context.Context, repos repository.Repositories, documentID string) (string, error) {
	for attempt := 1; attempt <= s.cfg.SecurityCodeAttempts; attempt++ {
		code, err := s.newSecurityCode()
		if err != nil {
			return "", fmt.Errorf("generar código de seguridad: %w", err)
		}
		err = repos.SecurityCodes.Insert(ctx, &entity.SecurityCodeRecord{Code: code, DocumentID: documentID, CreatedAt: s.now()})
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, domain.ErrDuplicate) {
			return "", fmt.Errorf("guardar código de seguridad: %w", err)
		}
		s.log.Debug().Int("attempt", attempt).Msg("código de seguridad repetido")
	}
	return "", fmt.Errorf("%w tras %d intentos", domain.ErrSecurityCodeExhausted, s.cfg.SecurityCodeAttempts)
}
