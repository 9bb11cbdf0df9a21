package tax_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
)

func TestRoundToCurrencyUnit_Escenario(t *testing.T) {
	rounded, adj := tax.RoundToCurrencyUnit(d("10013"), d("50"))
	assert.True(t, rounded.Equal(d("10000")), "redondeado = %s", rounded)
	assert.True(t, adj.Equal(d("13")), "ajuste = %s", adj)

	// El ajuste positivo se resta del total bruto.
	assert.True(t, tax.ReconstructTotal(d("10013"), adj).Equal(d("10000")))
}

func TestRoundToCurrencyUnit_MitadSeAlejaDeCero(t *testing.T) {
	cases := []struct {
		in, rounded, adj string
	}{
		{"10025", "10050", "-25"},
		{"10024", "10000", "24"},
		{"10075", "10100", "-25"},
		{"-10025", "-10050", "25"},
		{"0", "0", "0"},
	}
	for _, tc := range cases {
		rounded, adj := tax.RoundToCurrencyUnit(d(tc.in), d("50"))
		assert.True(t, rounded.Equal(d(tc.rounded)), "%s → %s", tc.in, rounded)
		assert.True(t, adj.Equal(d(tc.adj)), "%s ajuste %s", tc.in, adj)
	}
}

func TestReconstructTotal_ConvencionDeSigno(t *testing.T) {
	// ajuste <= 0: se suma |ajuste|
	assert.True(t, tax.ReconstructTotal(d("10025"), d("-25")).Equal(d("10050")))
	assert.True(t, tax.ReconstructTotal(d("10000"), decimal.Zero).Equal(d("10000")))
	// ajuste > 0: se resta |ajuste|
	assert.True(t, tax.ReconstructTotal(d("10024"), d("24")).Equal(d("10000")))
}

func TestRoundToCurrencyUnit_Idempotente(t *testing.T) {
	for _, raw := range []string{"1", "24", "25", "49.99", "10013", "999999.5", "-75"} {
		first, _ := tax.RoundToCurrencyUnit(d(raw), d("50"))
		second, adj := tax.RoundToCurrencyUnit(first, d("50"))
		assert.True(t, first.Equal(second), "%s: %s != %s", raw, first, second)
		assert.True(t, adj.IsZero())
	}
}

func TestRoundToCurrencyUnit_SinUnidad(t *testing.T) {
	rounded, adj := tax.RoundToCurrencyUnit(d("123.45"), decimal.Zero)
	assert.True(t, rounded.Equal(d("123.45")))
	assert.True(t, adj.IsZero())
}

func TestSumYReconcile(t *testing.T) {
	eng := tax.NewEngine(2)
	var lines []tax.LineBreakdown
	for _, in := range []struct {
		p     tax.Percents
		price string
	}{
		{pct("0", "0", "100"), "5513"},
		{pct("0", "100", "0"), "2100"},
		{pct("100", "0", "0"), "2400"},
	} {
		b, err := eng.ComputeLine(in.p, tax.DefaultRates(), d(in.price), d("1"), true)
		require.NoError(t, err)
		lines = append(lines, b)
	}

	totals := tax.Sum(lines, d("50"))
	assert.True(t, totals.Raw.Equal(d("10013")))
	assert.True(t, totals.Total.Equal(d("10000")))
	assert.True(t, totals.Adjustment.Equal(d("13")))
	require.NoError(t, eng.Reconcile(totals))

	totals.Total = d("10050")
	assert.Error(t, eng.Reconcile(totals))
}
