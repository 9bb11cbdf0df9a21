package tax

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundToCurrencyUnit redondea amount al múltiplo más cercano de unit (mitad hacia arriba en magnitud).
// adjustment = amount − rounded. Una unidad no positiva desactiva el redondeo.
func RoundToCurrencyUnit(amount, unit decimal.Decimal) (rounded, adjustment decimal.Decimal) {
	if !unit.IsPositive() {
		return amount, decimal.Zero
	}
	rounded = amount.Div(unit).Round(0).Mul(unit)
	return rounded, amount.Sub(rounded)
}

// ReconstructTotal obtiene el total publicado a partir del total bruto y el ajuste registrado.
// Convención heredada, se conserva tal cual para cuadrar con documentos ya emitidos:
// ajuste <= 0 suma |ajuste|; ajuste > 0 resta |ajuste|.
func ReconstructTotal(rawTotal, adjustment decimal.Decimal) decimal.Decimal {
	if adjustment.IsPositive() {
		return rawTotal.Sub(adjustment.Abs())
	}
	return rawTotal.Add(adjustment.Abs())
}

// Totals acumulados de un documento.
type Totals struct {
	Exempt     decimal.Decimal
	Base5      decimal.Decimal
	VAT5       decimal.Decimal
	Base10     decimal.Decimal
	VAT10      decimal.Decimal
	Raw        decimal.Decimal // Σ líneas
	Adjustment decimal.Decimal // Raw − Total
	Total      decimal.Decimal // publicado
}

// TaxTotal IVA total del documento.
func (t Totals) TaxTotal() decimal.Decimal { return t.VAT5.Add(t.VAT10) }

// Sum acumula las líneas y aplica el redondeo monetario sobre el total.
// unit no positivo deja Total == Raw (monedas sin redondeo).
func Sum(lines []LineBreakdown, unit decimal.Decimal) Totals {
	var t Totals
	for _, l := range lines {
		t.Exempt = t.Exempt.Add(l.Exempt)
		t.Base5 = t.Base5.Add(l.Base5)
		t.VAT5 = t.VAT5.Add(l.VAT5)
		t.Base10 = t.Base10.Add(l.Base10)
		t.VAT10 = t.VAT10.Add(l.VAT10)
		t.Raw = t.Raw.Add(l.Total)
	}
	t.Total, t.Adjustment = RoundToCurrencyUnit(t.Raw, unit)
	return t
}

// Reconcile verifica que las categorías cierren contra el total publicado:
// ReconstructTotal(exenta + base5 + iva5 + base10 + iva10, ajuste) == total, con tolerancia.
func (e *Engine) Reconcile(t Totals) error {
	parts := t.Exempt.Add(t.Base5).Add(t.VAT5).Add(t.Base10).Add(t.VAT10)
	got := ReconstructTotal(parts, t.Adjustment)
	if got.Sub(t.Total).Abs().GreaterThan(e.tolerance) {
		return fmt.Errorf("totales no cuadran: categorías %s reconstruyen %s, publicado %s",
			parts.String(), got.String(), t.Total.String())
	}
	return nil
}
