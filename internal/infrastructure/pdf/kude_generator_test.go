package pdf_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/pdf"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in, currency, want string
	}{
		{"10000", "PYG", "10.000"},
		{"1250000", "PYG", "1.250.000"},
		{"999", "PYG", "999"},
		{"-13", "PYG", "-13"},
		{"1234.5", "USD", "1.234,50"},
		{"0.004", "USD", "0,00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, pdf.FormatAmount(d(tc.in), tc.currency), tc.in)
	}
}

func TestGroupCDC(t *testing.T) {
	assert.Equal(t, "0180 0123 4500", pdf.GroupCDC("018001234500"))
	assert.Equal(t, "0180 01", pdf.GroupCDC("018001"))
	assert.Equal(t, "", pdf.GroupCDC(""))
}

func TestRender_GeneraPDF(t *testing.T) {
	seq := int64(7)
	in := billing.RenderInput{
		Document: &entity.Document{
			DocType:           entity.DocTypeInvoice,
			EstablishmentCode: "001",
			ExpeditionCode:    "001",
			SequenceNumber:    &seq,
			IssueDate:         time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			Currency:          "PYG",
			Counterparty:      entity.Counterparty{Name: "Cliente S.A.", RUC: "80000000", RUCCheckDigit: "5"},
			Base10:            d("9091"),
			VAT10:             d("909"),
			Total:             d("10000"),
			ControlCode:       "01800123450001001000000722026030210000000017",
			Status:            entity.StatusSigned,
		},
		Lines: []*entity.DocumentLine{{
			LineNo: 1, Description: "Servicio", Quantity: d("1"), UnitPrice: d("10000"),
			Percent10: d("100"), Total: d("10000"), Base10: d("9091"), VAT10: d("909"),
		}},
		Authorization: &entity.FiscalAuthorization{BusinessName: "Empresa S.A.", RUC: "80012345", RUCCheckDigit: "0", Number: "12345678"},
		Establishment: &entity.Establishment{Code: "001", Name: "Casa Matriz"},
		QRLink:        "https://ekuatia.set.gov.py/consultas-test/qr?nVersion=150",
	}
	out, err := pdf.NewKuDEGenerator().Render(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = pdf.NewKuDEGenerator().Render(context.Background(), billing.RenderInput{})
	assert.Error(t, err)
}
