package sifen_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/domain/sifen"
	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validDocument() (*entity.Document, []*entity.DocumentLine) {
	doc := &entity.Document{
		DocType:            entity.DocTypeInvoice,
		Counterparty:       entity.Counterparty{Name: "Cliente SA", RUC: "80012345", RUCCheckDigit: "0"},
		Total:              dec("11000"),
		RoundingAdjustment: decimal.Zero,
	}
	lines := []*entity.DocumentLine{{
		LineNo:        1,
		ExemptPercent: decimal.Zero,
		Percent5:      decimal.Zero,
		Percent10:     dec("100"),
		Total:         dec("11000"),
		Base10:        dec("10000"),
		VAT10:         dec("1000"),
	}}
	return doc, lines
}

func TestValidateDocument_OK(t *testing.T) {
	doc, lines := validDocument()
	assert.NoError(t, sifen.ValidateDocument(doc, lines, tax.NewEngine(2)))
}

func TestValidateDocument_TotalesNoCuadran(t *testing.T) {
	doc, lines := validDocument()
	doc.Total = dec("12000")
	err := sifen.ValidateDocument(doc, lines, tax.NewEngine(2))
	assert.ErrorIs(t, err, sifen.ErrInvalidDocument)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateDocument_RUCReceptorInvalido(t *testing.T) {
	doc, lines := validDocument()
	doc.Counterparty.RUCCheckDigit = "7"
	assert.Error(t, sifen.ValidateDocument(doc, lines, tax.NewEngine(2)))
}

func TestValidateDocument_NotaSinOrigen(t *testing.T) {
	doc, lines := validDocument()
	doc.DocType = entity.DocTypeCreditNote
	assert.ErrorIs(t, sifen.ValidateDocument(doc, lines, tax.NewEngine(2)), sifen.ErrInvalidDocument)
}

func TestValidateDocument_SinLineas(t *testing.T) {
	doc, _ := validDocument()
	assert.Error(t, sifen.ValidateDocument(doc, nil, tax.NewEngine(2)))
}
