// Package pdf genera el KuDE (Kuatia de Documento Electrónico), la representación gráfica
// del documento electrónico SIFEN.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón social + RUC  │  Tipo DE + N° + Timbrado      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  EMISOR: Establecimiento / Dirección                         │
//	│  RECEPTOR: Nombre + RUC/CI + contacto                        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Descripción | P.Unit | Exenta | 5% | 10%      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotales / Redondeo / IVA / TOTAL                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER SET: CDC + QR + Leyenda                              │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 56, Blue: 147}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 180, Green: 20, Blue: 20}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// KuDEGenerator implementa billing.DocumentRenderer usando Maroto v2.
type KuDEGenerator struct{}

// NewKuDEGenerator construye el generador.
func NewKuDEGenerator() *KuDEGenerator { return &KuDEGenerator{} }

// Render genera el PDF y devuelve sus bytes.
func (g *KuDEGenerator) Render(ctx context.Context, in billing.RenderInput) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Document == nil || in.Authorization == nil || in.Establishment == nil {
		return nil, fmt.Errorf("pdf: faltan documento, timbrado o establecimiento")
	}
	doc := in.Document
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("KuDE "+sifen.DocumentTypeDescription(int(doc.DocType)), true).
		WithAuthor(in.Authorization.BusinessName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(in))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(issuerRow(in.Establishment))
	m.AddRows(receiverRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(in.Lines, doc.Currency)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(doc, in.QRLink)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: razón social + RUC (izq) y tipo, número y timbrado (der).
func headerRow(in billing.RenderInput) core.Row {
	doc := in.Document
	auth := in.Authorization
	title := strings.ToUpper(sifen.DocumentTypeDescription(int(doc.DocType)))

	return row.New(22).Add(
		col.New(7).Add(
			text.New(auth.BusinessName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("RUC: "+auth.RUC+"-"+auth.RUCCheckDigit, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(title, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(doc.NumberLabel(), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 6,
			}),
			text.New(fmt.Sprintf("Timbrado N° %s   Vigencia: %s", auth.Number, auth.ValidFrom.Format("02/01/2006")), props.Text{
				Size: 7, Align: align.Right, Top: 13, Color: colorGray,
			}),
			text.New("Fecha de emisión: "+doc.IssueDate.Format("02/01/2006 15:04"), props.Text{
				Size: 7, Align: align.Right, Top: 17, Color: colorGray,
			}),
		),
	)
}

// issuerRow: datos del establecimiento emisor.
func issuerRow(est *entity.Establishment) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("DATOS DEL EMISOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Establecimiento: %s %s   |   Dirección: %s",
				est.Code, nonEmpty(est.Name, ""), nonEmpty(est.Address, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

// receiverRow: datos del receptor.
func receiverRow(doc *entity.Document) core.Row {
	c := doc.Counterparty
	id := "CI: " + nonEmpty(c.DocumentNumber, "—")
	if c.IsTaxpayer() {
		id = "RUC: " + c.RUC + "-" + c.RUCCheckDigit
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("RECEPTOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(c.Name, "Sin nombre"), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("%s   |   Email: %s   |   Moneda: %s",
				id, nonEmpty(c.Email, "—"), doc.Currency,
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 4, align.Left),
		h("Precio Unit.", 2, align.Right),
		h("Exentas", 1, align.Right),
		h("5%", 2, align.Right),
		h("10%", 2, align.Right),
	)
}

// tableDetailRows: una fila por ítem, con el valor de venta por categoría de IVA.
func tableDetailRows(lines []*entity.DocumentLine, currency string) []core.Row {
	cell := func(s string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}))
	}
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		result = append(result, row.New(7).Add(
			cell(l.Quantity.String(), 1, align.Center),
			cell(l.Description, 4, align.Left),
			cell(FormatAmount(l.UnitPrice, currency), 2, align.Right),
			cell(FormatAmount(l.Exempt, currency), 1, align.Right),
			cell(FormatAmount(l.Gravada5(), currency), 2, align.Right),
			cell(FormatAmount(l.Gravada10(), currency), 2, align.Right),
		))
	}
	return result
}

// totalsRow: subtotales por tasa, redondeo, liquidación de IVA y total.
func totalsRow(doc *entity.Document) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right, Right: 2})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 8, Align: align.Right, Right: 1})
	}
	cur := doc.Currency
	vat := doc.VAT5.Add(doc.VAT10)

	labels := col.New(4).Add(
		label("Subtotal exentas:"),
		label("Subtotal 5%:"),
		label("Subtotal 10%:"),
		label("Redondeo:"),
		label("Liquidación IVA (5%: "+FormatAmount(doc.VAT5, cur)+"  10%: "+FormatAmount(doc.VAT10, cur)+"):"),
		text.New("TOTAL "+cur+":", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2}),
	)
	values := col.New(3).Add(
		value(FormatAmount(doc.Exempt, cur)),
		value(FormatAmount(doc.Base5.Add(doc.VAT5), cur)),
		value(FormatAmount(doc.Base10.Add(doc.VAT10), cur)),
		value(FormatAmount(doc.RoundingAdjustment.Neg(), cur)),
		value(FormatAmount(vat, cur)),
		text.New(FormatAmount(doc.Total, cur), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1}),
	)
	return row.New(30).Add(col.New(5), labels, values)
}

// footerRows: CDC agrupado + QR + leyenda. Los documentos anulados llevan una marca visible.
func footerRows(doc *entity.Document, qrLink string) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("Consulte la validez de este documento electrónico con el CDC impreso en", props.Text{
				Size: 7, Color: colorGray, Top: 1,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New("https://ekuatia.set.gov.py/consultas/", props.Text{Size: 7, Color: colorPrimary}),
		)),
		row.New(7).Add(col.New(12).Add(
			text.New("CDC: "+GroupCDC(doc.ControlCode), props.Text{Style: fontstyle.Bold, Size: 9, Top: 1}),
		)),
	}

	if doc.Status == entity.StatusVoided {
		rows = append(rows, row.New(8).Add(col.New(12).Add(
			text.New("DOCUMENTO ANULADO", props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Center, Color: colorRed, Top: 1,
			}),
		)))
	}

	if qrLink != "" {
		rows = append(rows, row.New(45).Add(
			col.New(4).Add(code.NewQr(qrLink, props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New("ESTE DOCUMENTO ES UNA REPRESENTACIÓN GRÁFICA DE UN\nDOCUMENTO ELECTRÓNICO (XML)", props.Text{
					Style: fontstyle.Bold, Size: 8, Top: 6, Left: 3, Color: colorPrimary,
				}),
				text.New("Si su documento electrónico presenta algún error,\npodrá solicitar la modificación dentro de las 72 horas\nsiguientes de la emisión de este comprobante.", props.Text{
					Size: 7, Top: 20, Left: 3, Color: colorGray,
				}),
			),
		))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// FormatAmount formatea con punto de miles y coma decimal (es-PY).
// Guaraníes sin decimales; otras monedas con 2.
func FormatAmount(d decimal.Decimal, currency string) string {
	places := int32(2)
	if currency == "" || currency == "PYG" {
		places = 0
	}
	s := d.Abs().StringFixed(places)
	intPart, frac, _ := strings.Cut(s, ".")
	out := groupThousands(intPart)
	if frac != "" {
		out += "," + frac
	}
	if d.Round(places).IsNegative() {
		out = "-" + out
	}
	return out
}

// groupThousands inserta puntos de miles en un string numérico sin signo.
// Ej: "25000" → "25.000", "1000000" → "1.000.000"
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}

// GroupCDC separa el CDC en bloques de 4 dígitos para facilitar su lectura.
func GroupCDC(cdc string) string {
	var parts []string
	for len(cdc) > 4 {
		parts = append(parts, cdc[:4])
		cdc = cdc[4:]
	}
	if cdc != "" {
		parts = append(parts, cdc)
	}
	return strings.Join(parts, " ")
}

var _ billing.DocumentRenderer = (*KuDEGenerator)(nil)
