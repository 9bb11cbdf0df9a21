package tax_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pct(exempt, p5, p10 string) tax.Percents {
	return tax.Percents{Exempt: d(exempt), P5: d(p5), P10: d(p10)}
}

func assertBalanced(t *testing.T, b tax.LineBreakdown) {
	t.Helper()
	sum := b.Exempt.Add(b.Base5).Add(b.VAT5).Add(b.Base10).Add(b.VAT10)
	assert.True(t, sum.Equal(b.Total), "exenta + gravadas debe igualar el total: %s != %s", sum, b.Total)
}

// ── Precio con IVA incluido ──

func TestComputeLine_Gravada10Total(t *testing.T) {
	eng := tax.NewEngine(2)
	b, err := eng.ComputeLine(pct("0", "0", "100"), tax.DefaultRates(), d("11000"), d("1"), true)
	require.NoError(t, err)

	assert.True(t, b.Base10.Equal(d("10000.00")), "base10 = %s", b.Base10)
	assert.True(t, b.VAT10.Equal(d("1000.00")), "iva10 = %s", b.VAT10)
	assert.True(t, b.Exempt.IsZero(), "exenta = %s", b.Exempt)
	assert.True(t, b.Base5.IsZero())
	assertBalanced(t, b)
}

func TestComputeLine_Gravada5Total(t *testing.T) {
	eng := tax.NewEngine(2)
	b, err := eng.ComputeLine(pct("0", "100", "0"), tax.DefaultRates(), d("5250"), d("2"), true)
	require.NoError(t, err)

	assert.True(t, b.Total.Equal(d("10500")))
	assert.True(t, b.Base5.Equal(d("10000")), "base5 = %s", b.Base5)
	assert.True(t, b.VAT5.Equal(d("500")), "iva5 = %s", b.VAT5)
	assertBalanced(t, b)
}

func TestComputeLine_ProporcionParcialExenta(t *testing.T) {
	eng := tax.NewEngine(2)
	b, err := eng.ComputeLine(pct("50", "0", "50"), tax.DefaultRates(), d("1000"), d("1"), true)
	require.NoError(t, err)

	// base = 100·1000·50 / (10000 + 10·50) = 476.19
	assert.True(t, b.Base10.Equal(d("476.19")), "base10 = %s", b.Base10)
	assert.True(t, b.VAT10.Equal(d("47.62")), "iva10 = %s", b.VAT10)
	assert.True(t, b.Exempt.Equal(d("476.19")), "exenta = %s", b.Exempt)
	assertBalanced(t, b)
}

func TestComputeLine_AmbasTasas(t *testing.T) {
	eng := tax.NewEngine(2)
	b, err := eng.ComputeLine(pct("0", "50", "50"), tax.DefaultRates(), d("2000"), d("1"), true)
	require.NoError(t, err)

	assert.True(t, b.Gravada5().Equal(d("976.74")), "gravada5 = %s", b.Gravada5())
	assert.True(t, b.Gravada10().Equal(d("1023.26")), "gravada10 = %s", b.Gravada10())
	assert.True(t, b.Exempt.IsZero())
	assertBalanced(t, b)
}

func TestComputeLine_TodoExento(t *testing.T) {
	eng := tax.NewEngine(2)
	b, err := eng.ComputeLine(pct("100", "0", "0"), tax.DefaultRates(), d("3333.33"), d("3"), true)
	require.NoError(t, err)

	assert.True(t, b.Exempt.Equal(d("9999.99")))
	assert.True(t, b.TaxTotal().IsZero())
	assertBalanced(t, b)
}

// TestComputeLine_IdaYVuelta: base → T = base·(1+r/100) → ComputeLine recupera base e IVA.
func TestComputeLine_IdaYVuelta(t *testing.T) {
	eng := tax.NewEngine(2)
	tol := d("0.01")
	bases := []string{"1", "99.99", "1234.56", "10000", "777777.77"}
	for _, raw := range bases {
		base := d(raw)
		for _, rate := range []int64{5, 10} {
			r := decimal.NewFromInt(rate)
			gross := base.Mul(decimal.NewFromInt(100).Add(r)).Div(decimal.NewFromInt(100))
			p := pct("0", "0", "100")
			if rate == 5 {
				p = pct("0", "100", "0")
			}
			b, err := eng.ComputeLine(p, tax.DefaultRates(), gross, d("1"), true)
			require.NoError(t, err)

			gotBase, gotVAT := b.Base10, b.VAT10
			if rate == 5 {
				gotBase, gotVAT = b.Base5, b.VAT5
			}
			wantVAT := base.Mul(r).Div(decimal.NewFromInt(100))
			assert.True(t, gotBase.Sub(base).Abs().LessThanOrEqual(tol), "base %s tasa %d: %s", raw, rate, gotBase)
			assert.True(t, gotVAT.Sub(wantVAT).Abs().LessThanOrEqual(tol), "iva %s tasa %d: %s", raw, rate, gotVAT)
			assertBalanced(t, b)
		}
	}
}

// ── Precio neto ──

func TestComputeLine_PrecioNeto(t *testing.T) {
	eng := tax.NewEngine(2)
	b, err := eng.ComputeLine(pct("0", "0", "100"), tax.DefaultRates(), d("10000"), d("1"), false)
	require.NoError(t, err)

	assert.True(t, b.Base10.Equal(d("10000")))
	assert.True(t, b.VAT10.Equal(d("1000")))
	assert.True(t, b.Total.Equal(d("11000")))
	assertBalanced(t, b)
}

func TestComputeLine_PrecioNetoMixto(t *testing.T) {
	eng := tax.NewEngine(2)
	b, err := eng.ComputeLine(pct("40", "0", "60"), tax.DefaultRates(), d("500"), d("2"), false)
	require.NoError(t, err)

	assert.True(t, b.Exempt.Equal(d("400")))
	assert.True(t, b.Base10.Equal(d("600")))
	assert.True(t, b.VAT10.Equal(d("60")))
	assert.True(t, b.Total.Equal(d("1060")))
}

// ── Validaciones ──

func TestComputeLine_ProporcionesInvalidas(t *testing.T) {
	eng := tax.NewEngine(2)
	cases := map[string]tax.Percents{
		"suma 90":   pct("0", "0", "90"),
		"suma 110":  pct("10", "0", "100"),
		"negativa":  pct("110", "0", "-10"),
		"mayor 100": pct("0", "0", "150"),
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := eng.ComputeLine(p, tax.DefaultRates(), d("100"), d("1"), true)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidProportions)
		})
	}
}

func TestComputeLine_ToleranciaDeProporciones(t *testing.T) {
	eng := tax.NewEngine(2)
	_, err := eng.ComputeLine(pct("33.33", "33.33", "33.33"), tax.DefaultRates(), d("100"), d("1"), true)
	assert.NoError(t, err, "99.99 está dentro de la tolerancia de 0.01")

	_, err = eng.ComputeLine(pct("33.33", "33.33", "33.32"), tax.DefaultRates(), d("100"), d("1"), true)
	assert.ErrorIs(t, err, domain.ErrInvalidProportions)
}

func TestComputeLine_CantidadInvalida(t *testing.T) {
	eng := tax.NewEngine(2)
	_, err := eng.ComputeLine(pct("0", "0", "100"), tax.DefaultRates(), d("100"), d("0"), true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = eng.ComputeLine(pct("0", "0", "100"), tax.DefaultRates(), d("-1"), d("1"), true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
