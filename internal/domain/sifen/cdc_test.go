package sifen_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/domain/sifen"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores de CDC calculados a mano con el módulo 11 de la SET:
//
//	01 80012345 0 001 001 0000001 2 20240115 1 123456789 → DV 4
//	05 80012345 0 002 003 0000150 2 20240301 1 000000042 → DV 6
// ──────────────────────────────────────────────────────────────────────────────

func baseParams() sifen.CDCParams {
	return sifen.CDCParams{
		DocType:        1,
		RUC:            "80012345",
		RUCCheckDigit:  "0",
		Establishment:  "001",
		Expedition:     "001",
		SequenceNumber: 1,
		TaxpayerType:   2,
		IssueDate:      time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		EmissionType:   1,
		SecurityCode:   "123456789",
	}
}

func TestGenerateCDC_VectorExacto(t *testing.T) {
	gen := sifen.NewCDCGenerator()

	cdc, dv, err := gen.Generate(baseParams())
	require.NoError(t, err)
	assert.Equal(t, "01800123450001001000000122024011511234567894", cdc)
	assert.Equal(t, 4, dv)
	assert.Len(t, cdc, sifen.CDCLength)
	assert.NoError(t, sifen.ValidateCDC(cdc))
}

func TestGenerateCDC_NotaDeCredito(t *testing.T) {
	gen := sifen.NewCDCGenerator()
	p := baseParams()
	p.DocType = 5
	p.Establishment = "2"
	p.Expedition = "3"
	p.SequenceNumber = 150
	p.IssueDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p.SecurityCode = "000000042"

	cdc, dv, err := gen.Generate(p)
	require.NoError(t, err)
	assert.Equal(t, "05800123450002003000015022024030110000000426", cdc)
	assert.Equal(t, 6, dv)
}

func TestGenerateCDC_Determinista(t *testing.T) {
	gen := sifen.NewCDCGenerator()
	a, _, err := gen.Generate(baseParams())
	require.NoError(t, err)
	b, _, err := gen.Generate(baseParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateCDC_CamposInvalidos(t *testing.T) {
	gen := sifen.NewCDCGenerator()
	cases := map[string]func(*sifen.CDCParams){
		"ruc largo":       func(p *sifen.CDCParams) { p.RUC = "123456789" },
		"ruc con letras":  func(p *sifen.CDCParams) { p.RUC = "8001A345" },
		"dv vacío":        func(p *sifen.CDCParams) { p.RUCCheckDigit = "" },
		"número cero":     func(p *sifen.CDCParams) { p.SequenceNumber = 0 },
		"número excedido": func(p *sifen.CDCParams) { p.SequenceNumber = 10000000 },
		"código corto":    func(p *sifen.CDCParams) { p.SecurityCode = "1234567890" },
		"contribuyente":   func(p *sifen.CDCParams) { p.TaxpayerType = 3 },
		"sin fecha":       func(p *sifen.CDCParams) { p.IssueDate = time.Time{} },
		"establecimiento": func(p *sifen.CDCParams) { p.Establishment = "0001" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := baseParams()
			mutate(&p)
			_, _, err := gen.Generate(p)
			assert.Error(t, err)
		})
	}
}

func TestValidateCDC_DVIncorrecto(t *testing.T) {
	assert.Error(t, sifen.ValidateCDC("01800123450001001000000122024011511234567895"))
	assert.Error(t, sifen.ValidateCDC("123"))
}
