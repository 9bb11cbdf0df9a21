package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
)

// CurrencyPYG guaraníes: única moneda con redondeo a la unidad monetaria.
const CurrencyPYG = "PYG"

// LineInput ítem de entrada. Los porcentajes deben sumar 100.
type LineInput struct {
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ExemptPercent decimal.Decimal `json:"exempt_percent"`
	Percent5      decimal.Decimal `json:"percent_5"`
	Percent10     decimal.Decimal `json:"percent_10"`
}

// DraftInput datos de un documento nuevo. Timbrado y establecimiento se pasan siempre
// de forma explícita; no hay configuración fiscal implícita.
type DraftInput struct {
	DocType           entity.DocumentType
	AuthorizationID   string
	EstablishmentID   string
	ExpeditionCode    string
	IssueDate         time.Time // cero = ahora
	Currency          string    // vacío = PYG
	Counterparty      entity.Counterparty
	NetPrices         bool // precios sin IVA; por defecto el precio incluye IVA
	Lines             []LineInput
	RelatedDocumentID string // obligatorio en NC/ND
}

// AllocateAndSign crea el documento y le asigna número en una única transacción: si el
// talonario está agotado (o la nota excede el saldo del origen) no queda nada persistido.
// La firma ocurre después, fuera de la transacción. Si falla, se devuelve el documento
// NUMBERED junto con el error para reintentar con Sign o anular con Void.
func (s *Service) AllocateAndSign(ctx context.Context, in DraftInput) (*entity.Document, error) {
	if err := checkDraftKind(in); err != nil {
		return nil, err
	}
	doc, lines, err := s.prepare(ctx, s.store.Repositories(), in)
	if err != nil {
		return nil, err
	}
	err = s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		if err := s.createInTx(ctx, repos, in, doc, lines); err != nil {
			return err
		}
		numbered, err := s.allocateInTx(ctx, repos, doc.ID)
		if err != nil {
			return err
		}
		doc = numbered
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Int("doc_type", int(doc.DocType)).Str("number", doc.NumberLabel()).
		Str("total", doc.Total.String()).Msg("documento creado y numerado")

	signed, err := s.Sign(ctx, doc.ID)
	if err != nil {
		return doc, err
	}
	return signed, nil
}

// CreateDraft valida y persiste un documento en DRAFT con sus líneas calculadas.
func (s *Service) CreateDraft(ctx context.Context, in DraftInput) (*entity.Document, error) {
	if in.DocType.IsNote() {
		return nil, fmt.Errorf("%w: las notas de crédito/débito se crean con CreateNote", domain.ErrInvalidInput)
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
	s.log.Info().Str("document_id", doc.ID).Int("doc_type", int(doc.DocType)).Str("total", doc.Total.String()).Msg("borrador creado")
	return doc, nil
}

// checkDraftKind exige origen en las notas.
func checkDraftKind(in DraftInput) error {
	if in.DocType.IsNote() && in.RelatedDocumentID == "" {
		return fmt.Errorf("%w: falta el documento de origen", domain.ErrInvalidInput)
	}
	return nil
}

// createInTx persiste el borrador; en notas valida el origen y descuenta su saldo en la misma transacción.
func (s *Service) createInTx(ctx context.Context, repos repository.Repositories, in DraftInput, doc *entity.Document, lines []*entity.DocumentLine) error {
	if in.DocType.IsNote() {
		origin, err := repos.Documents.GetForUpdate(ctx, in.RelatedDocumentID)
		if err != nil {
			return err
		}
		if origin == nil {
			return fmt.Errorf("documento de origen %s: %w", in.RelatedDocumentID, domain.ErrNotFound)
		}
		if err := s.chargeOrigin(ctx, repos, origin, doc); err != nil {
			return err
		}
	}
	return persistNew(ctx, repos, doc, lines)
}

// Get devuelve el documento y sus líneas.
func (s *Service) Get(ctx context.Context, id string) (*entity.Document, []*entity.DocumentLine, error) {
	repos := s.store.Repositories()
	doc, err := repos.Documents.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, domain.ErrNotFound
	}
	lines, err := repos.Documents.GetLines(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return doc, lines, nil
}

// prepare valida el contexto fiscal y calcula líneas y totales sin persistir nada.
func (s *Service) prepare(ctx context.Context, repos repository.Repositories, in DraftInput) (*entity.Document, []*entity.DocumentLine, error) {
	if !in.DocType.Valid() {
		return nil, nil, fmt.Errorf("%w: tipo de documento %d", domain.ErrInvalidInput, in.DocType)
	}
	issue := in.IssueDate
	if issue.IsZero() {
		issue = s.now()
	}
	est, err := s.fiscalContext(ctx, repos, in.AuthorizationID, in.EstablishmentID, in.ExpeditionCode, issue)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(in.Counterparty.Name) == "" {
		return nil, nil, fmt.Errorf("%w: el receptor debe tener nombre", domain.ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = CurrencyPYG
	}

	now := s.now()
	doc := &entity.Document{
		ID:                uuid.New().String(),
		DocType:           in.DocType,
		AuthorizationID:   in.AuthorizationID,
		EstablishmentID:   est.ID,
		EstablishmentCode: est.Code,
		ExpeditionCode:    in.ExpeditionCode,
		IssueDate:         issue,
		Currency:          currency,
		Counterparty:      in.Counterparty,
		Status:            entity.StatusDraft,
		BatchState:        entity.BatchNone,
		AuthorityState:    entity.AuthorityNone,
		VoidKind:          entity.VoidNone,
		RelatedDocumentID: in.RelatedDocumentID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	lines, err := s.computeLines(doc, in.Lines, !in.NetPrices)
	if err != nil {
		return nil, nil, err
	}
	return doc, lines, nil
}

// fiscalContext verifica timbrado vigente y establecimiento/punto de expedición habilitados.
func (s *Service) fiscalContext(ctx context.Context, repos repository.Repositories, authID, estID, expedition string, on time.Time) (*entity.Establishment, error) {
	auth, err := repos.Authorizations.GetByID(ctx, authID)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, fmt.Errorf("timbrado %s: %w", authID, domain.ErrNotFound)
	}
	if !auth.IsValidOn(on) {
		return nil, fmt.Errorf("%w: timbrado %s al %s", domain.ErrAuthorizationInvalid, auth.Number, on.Format("2006-01-02"))
	}
	est, err := repos.Establishments.GetByID(ctx, estID)
	if err != nil {
		return nil, err
	}
	if est == nil {
		return nil, fmt.Errorf("establecimiento %s: %w", estID, domain.ErrNotFound)
	}
	if est.AuthorizationID != auth.ID {
		return nil, fmt.Errorf("%w: el establecimiento %s no pertenece al timbrado", domain.ErrInvalidInput, est.Code)
	}
	if !est.AllowsExpedition(expedition) {
		return nil, fmt.Errorf("%w: punto de expedición %q no habilitado en %s", domain.ErrInvalidInput, expedition, est.Code)
	}
	return est, nil
}

// computeLines calcula cada línea y asigna los totales del documento (con redondeo en PYG).
func (s *Service) computeLines(doc *entity.Document, inputs []LineInput, inclusive bool) ([]*entity.DocumentLine, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: el documento debe tener al menos una línea", domain.ErrInvalidInput)
	}
	lines := make([]*entity.DocumentLine, 0, len(inputs))
	breakdowns := make([]tax.LineBreakdown, 0, len(inputs))
	for i, in := range inputs {
		if in.Percent5.IsPositive() && in.Percent10.IsPositive() {
			return nil, fmt.Errorf("%w: línea %d: SIFEN admite una sola tasa de IVA por ítem", domain.ErrInvalidProportions, i+1)
		}
		p := tax.Percents{Exempt: in.ExemptPercent, P5: in.Percent5, P10: in.Percent10}
		b, err := s.tax.ComputeLine(p, s.cfg.Rates, in.UnitPrice, in.Quantity, inclusive)
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", i+1, err)
		}
		breakdowns = append(breakdowns, b)
		lines = append(lines, &entity.DocumentLine{
			ID:            uuid.New().String(),
			DocumentID:    doc.ID,
			LineNo:        i + 1,
			Code:          in.Code,
			Description:   in.Description,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			ExemptPercent: in.ExemptPercent,
			Percent5:      in.Percent5,
			Percent10:     in.Percent10,
			Total:         b.Total,
			Exempt:        b.Exempt,
			Base5:         b.Base5,
			VAT5:          b.VAT5,
			Base10:        b.Base10,
			VAT10:         b.VAT10,
		})
	}

	unit := decimal.Zero
	if doc.Currency == CurrencyPYG {
		unit = s.cfg.RoundingUnit
	}
	totals := tax.Sum(breakdowns, unit)
	if err := s.tax.Reconcile(totals); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if !totals.Total.IsPositive() {
		return nil, fmt.Errorf("%w: el total del documento debe ser mayor a cero", domain.ErrInvalidInput)
	}
	doc.Exempt = totals.Exempt
	doc.Base5 = totals.Base5
	doc.VAT5 = totals.VAT5
	doc.Base10 = totals.Base10
	doc.VAT10 = totals.VAT10
	doc.RawTotal = totals.Raw
	doc.RoundingAdjustment = totals.Adjustment
	doc.Total = totals.Total
	doc.RemainingBalance = totals.Total
	return lines, nil
}

func persistNew(ctx context.Context, repos repository.Repositories, doc *entity.Document, lines []*entity.DocumentLine) error {
	if err := repos.Documents.Create(ctx, doc); err != nil {
		return fmt.Errorf("crear documento: %w", err)
	}
	if err := repos.Documents.CreateLines(ctx, lines); err != nil {
		return fmt.Errorf("crear líneas: %w", err)
	}
	return nil
}
