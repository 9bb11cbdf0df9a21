package entity

import "github.com/shopspring/decimal"

// DocumentLine es un ítem gravado del documento. Pertenece solo a su Document.
// Invariante: ExemptPercent + Percent5 + Percent10 ≈ 100.
type DocumentLine struct {
	ID            string
	DocumentID    string
	LineNo        int
	Code          string
	Description   string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	ExemptPercent decimal.Decimal
	Percent5      decimal.Decimal
	Percent10     decimal.Decimal

	Total  decimal.Decimal
	Exempt decimal.Decimal
	Base5  decimal.Decimal
	VAT5   decimal.Decimal
	Base10 decimal.Decimal
	VAT10  decimal.Decimal
}

// Gravada5 es la porción gravada al 5% (base + IVA).
func (l *DocumentLine) Gravada5() decimal.Decimal { return l.Base5.Add(l.VAT5) }

// Gravada10 es la porción gravada al 10% (base + IVA).
func (l *DocumentLine) Gravada10() decimal.Decimal { return l.Base10.Add(l.VAT10) }
