// Package tax implementa el cálculo de IVA de SIFEN: derivación de base imponible e IVA
// a partir de precios con impuesto incluido, para las categorías exenta / 5% / 10%,
// y el redondeo a la unidad monetaria con su ajuste.
//
// Todo el paquete es puro (sin estado compartido) y usa decimal para evitar
// deriva de coma flotante sobre miles de ítems.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sifen/internal/domain"
)

var (
	hundred      = decimal.NewFromInt(100)
	tenThousand  = decimal.NewFromInt(10000)
	defaultTol   = decimal.RequireFromString("0.01")
	defaultPlace = int32(2)
)

// Percents proporciones (0–100) de la línea por categoría.
// P5 y P10 son la proporción gravada de la base neta (dPropIVA); Exempt es el complemento.
type Percents struct {
	Exempt decimal.Decimal
	P5     decimal.Decimal
	P10    decimal.Decimal
}

// Rates tasas de IVA por categoría.
type Rates struct {
	R5  decimal.Decimal
	R10 decimal.Decimal
}

// DefaultRates devuelve las tasas vigentes en Paraguay (5% y 10%).
func DefaultRates() Rates {
	return Rates{R5: decimal.NewFromInt(5), R10: decimal.NewFromInt(10)}
}

// LineBreakdown resultado del cálculo de una línea.
// Invariante: Exempt + Base5 + VAT5 + Base10 + VAT10 == Total.
type LineBreakdown struct {
	Total  decimal.Decimal
	Exempt decimal.Decimal
	Base5  decimal.Decimal
	VAT5   decimal.Decimal
	Base10 decimal.Decimal
	VAT10  decimal.Decimal
}

// Gravada5 base + IVA de la categoría 5%.
func (b LineBreakdown) Gravada5() decimal.Decimal { return b.Base5.Add(b.VAT5) }

// Gravada10 base + IVA de la categoría 10%.
func (b LineBreakdown) Gravada10() decimal.Decimal { return b.Base10.Add(b.VAT10) }

// TaxTotal IVA total de la línea.
func (b LineBreakdown) TaxTotal() decimal.Decimal { return b.VAT5.Add(b.VAT10) }

// Engine calcula líneas con una cantidad fija de decimales.
type Engine struct {
	places    int32
	tolerance decimal.Decimal
}

// NewEngine crea el motor. places es la cantidad de decimales de los montos por línea (2 si es negativo).
func NewEngine(places int32) *Engine {
	if places < 0 {
		places = defaultPlace
	}
	return &Engine{places: places, tolerance: defaultTol}
}

// Places devuelve los decimales usados por el motor.
func (e *Engine) Places() int32 { return e.places }

// ValidatePercents verifica que cada proporción esté en [0,100] y que sumen 100 (± tolerancia).
func (e *Engine) ValidatePercents(p Percents) error {
	for _, v := range []decimal.Decimal{p.Exempt, p.P5, p.P10} {
		if v.IsNegative() || v.GreaterThan(hundred) {
			return fmt.Errorf("%w: proporción fuera de rango (%s)", domain.ErrInvalidProportions, v.String())
		}
	}
	sum := p.Exempt.Add(p.P5).Add(p.P10)
	if sum.Sub(hundred).Abs().GreaterThan(e.tolerance) {
		return fmt.Errorf("%w: suman %s", domain.ErrInvalidProportions, sum.String())
	}
	return nil
}

// ComputeLine calcula el desglose de una línea.
//
// Con inclusiveOfTax (caso dominante) el precio incluye IVA. Con T = precio × cantidad y
// D = 10000 + Σ r·p, cada categoría activa obtiene base = 100·T·p / D e IVA = base·r/100;
// con una sola tasa activa D = 10000 + r·p. Lo exento es el complemento, de modo que
// exenta + Σ(base+IVA) == T exactamente.
//
// Sin inclusiveOfTax el precio es neto: base = N·p/100 y el IVA se suma encima.
func (e *Engine) ComputeLine(p Percents, r Rates, grossUnitPrice, quantity decimal.Decimal, inclusiveOfTax bool) (LineBreakdown, error) {
	if err := e.ValidatePercents(p); err != nil {
		return LineBreakdown{}, err
	}
	if !quantity.IsPositive() {
		return LineBreakdown{}, fmt.Errorf("%w: cantidad debe ser mayor a cero", domain.ErrInvalidInput)
	}
	if grossUnitPrice.IsNegative() {
		return LineBreakdown{}, fmt.Errorf("%w: precio unitario negativo", domain.ErrInvalidInput)
	}
	if r.R5.IsNegative() || r.R10.IsNegative() {
		return LineBreakdown{}, fmt.Errorf("%w: tasa de IVA negativa", domain.ErrInvalidInput)
	}
	amount := grossUnitPrice.Mul(quantity).Round(e.places)
	if inclusiveOfTax {
		return e.fromGross(p, r, amount), nil
	}
	return e.fromNet(p, r, amount), nil
}

type category struct {
	pct  decimal.Decimal
	rate decimal.Decimal
	base *decimal.Decimal
	vat  *decimal.Decimal
}

func (e *Engine) fromGross(p Percents, r Rates, total decimal.Decimal) LineBreakdown {
	out := LineBreakdown{Total: total}
	cats := activeCategories(p, r, &out)
	if len(cats) == 0 {
		out.Exempt = total
		return out
	}
	denom := tenThousand
	for _, c := range cats {
		denom = denom.Add(c.rate.Mul(c.pct))
	}

	gravadas := make([]decimal.Decimal, len(cats))
	sum := decimal.Zero
	for i, c := range cats {
		gravadas[i] = total.Mul(c.pct).Mul(hundred.Add(c.rate)).Div(denom).Round(e.places)
		sum = sum.Add(gravadas[i])
	}
	// Sin porción exenta el residuo de redondeo va a la última categoría.
	if p.Exempt.IsZero() {
		last := len(cats) - 1
		gravadas[last] = total.Sub(sum.Sub(gravadas[last]))
		sum = total
	}
	for i, c := range cats {
		base := gravadas[i].Mul(hundred).Div(hundred.Add(c.rate)).Round(e.places)
		*c.base = base
		*c.vat = gravadas[i].Sub(base)
	}
	out.Exempt = total.Sub(sum)
	return out
}

func (e *Engine) fromNet(p Percents, r Rates, net decimal.Decimal) LineBreakdown {
	out := LineBreakdown{}
	cats := activeCategories(p, r, &out)
	taxedBase := decimal.Zero
	for i, c := range cats {
		base := net.Mul(c.pct).Div(hundred).Round(e.places)
		if p.Exempt.IsZero() && i == len(cats)-1 {
			base = net.Sub(taxedBase)
		}
		*c.base = base
		*c.vat = base.Mul(c.rate).Div(hundred).Round(e.places)
		taxedBase = taxedBase.Add(base)
	}
	out.Exempt = net.Sub(taxedBase)
	out.Total = out.Exempt.Add(out.Gravada5()).Add(out.Gravada10())
	return out
}

func activeCategories(p Percents, r Rates, out *LineBreakdown) []category {
	var cats []category
	if p.P5.IsPositive() {
		cats = append(cats, category{pct: p.P5, rate: r.R5, base: &out.Base5, vat: &out.VAT5})
	}
	if p.P10.IsPositive() {
		cats = append(cats, category{pct: p.P10, rate: r.R10, base: &out.Base10, vat: &out.VAT10})
	}
	return cats
}
