package sifen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
	"github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

// ErrInvalidDocument agrupa errores de validación previos a la firma.
var ErrInvalidDocument = errors.New("documento inválido para SIFEN")

// TotalsChecker valida proporciones y cuadre de totales (lo implementa tax.Engine).
type TotalsChecker interface {
	ValidatePercents(p tax.Percents) error
	Reconcile(t tax.Totals) error
}

// ValidateDocument valida cabecera y líneas antes de firmar: tipo, receptor,
// proporciones por línea y cuadre de totales contra el total publicado.
func ValidateDocument(doc *entity.Document, lines []*entity.DocumentLine, engine TotalsChecker) error {
	if doc == nil {
		return fmt.Errorf("%w: documento nulo", ErrInvalidDocument)
	}
	var errs []error

	if !doc.DocType.Valid() {
		errs = append(errs, fmt.Errorf("tipo de documento %d no soportado", doc.DocType))
	}
	if doc.DocType.IsNote() && doc.RelatedDocumentID == "" {
		errs = append(errs, fmt.Errorf("las notas de crédito/débito requieren documento de origen"))
	}
	if strings.TrimSpace(doc.Counterparty.Name) == "" {
		errs = append(errs, fmt.Errorf("el receptor debe tener nombre o razón social"))
	}
	if doc.Counterparty.IsTaxpayer() {
		if err := sifen.ValidateRUC(doc.Counterparty.RUC, doc.Counterparty.RUCCheckDigit); err != nil {
			errs = append(errs, fmt.Errorf("receptor: %w", err))
		}
	}

	if len(lines) == 0 {
		errs = append(errs, fmt.Errorf("el documento debe tener al menos una línea"))
	} else {
		var totals tax.Totals
		for _, l := range lines {
			p := tax.Percents{Exempt: l.ExemptPercent, P5: l.Percent5, P10: l.Percent10}
			if err := engine.ValidatePercents(p); err != nil {
				errs = append(errs, fmt.Errorf("línea %d: %w", l.LineNo, err))
			}
			totals.Exempt = totals.Exempt.Add(l.Exempt)
			totals.Base5 = totals.Base5.Add(l.Base5)
			totals.VAT5 = totals.VAT5.Add(l.VAT5)
			totals.Base10 = totals.Base10.Add(l.Base10)
			totals.VAT10 = totals.VAT10.Add(l.VAT10)
		}
		totals.Adjustment = doc.RoundingAdjustment
		totals.Total = doc.Total
		if err := engine.Reconcile(totals); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidDocument, domain.ErrInvalidInput}, errs...)...)
	}
	return nil
}
