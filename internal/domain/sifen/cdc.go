// Package sifen: generación del CDC (Código de Control) del documento electrónico según
// el Manual Técnico SIFEN v150. 44 dígitos: 43 de datos más el dígito verificador módulo 11.
package sifen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

// CDCLength longitud total del CDC.
const CDCLength = 44

// CDCParams datos que componen el CDC, en el orden exigido por la SET.
type CDCParams struct {
	DocType        int       // iTiDE (2 dígitos)
	RUC            string    // RUC del emisor sin DV (se completa a 8)
	RUCCheckDigit  string    // DV del RUC (1 dígito)
	Establishment  string    // 3 dígitos
	Expedition     string    // punto de expedición, 3 dígitos
	SequenceNumber int64     // 7 dígitos
	TaxpayerType   int       // iTipCont (1 física, 2 jurídica)
	IssueDate      time.Time // AAAAMMDD
	EmissionType   int       // iTipEmi
	SecurityCode   string    // dCodSeg, 9 dígitos
}

// CDCGenerator arma el CDC. No tiene estado.
type CDCGenerator struct{}

// NewCDCGenerator crea el generador.
func NewCDCGenerator() *CDCGenerator {
	return &CDCGenerator{}
}

// Generate devuelve el CDC de 44 dígitos y, por separado, su dígito verificador (dDVId).
func (g *CDCGenerator) Generate(p CDCParams) (controlCode string, checkDigit int, err error) {
	if p.DocType < 1 || p.DocType > 99 {
		return "", 0, fmt.Errorf("sifen: tipo de documento inválido %d", p.DocType)
	}
	ruc := strings.TrimSpace(p.RUC)
	if ruc == "" || len(ruc) > 8 || !isDigits(ruc) {
		return "", 0, fmt.Errorf("sifen: RUC inválido %q", p.RUC)
	}
	if len(p.RUCCheckDigit) != 1 || !isDigits(p.RUCCheckDigit) {
		return "", 0, fmt.Errorf("sifen: DV del RUC inválido %q", p.RUCCheckDigit)
	}
	est, err := fixed(p.Establishment, 3, "establecimiento")
	if err != nil {
		return "", 0, err
	}
	exp, err := fixed(p.Expedition, 3, "punto de expedición")
	if err != nil {
		return "", 0, err
	}
	if p.SequenceNumber < 1 || p.SequenceNumber > 9999999 {
		return "", 0, fmt.Errorf("sifen: número de documento fuera de rango %d", p.SequenceNumber)
	}
	if p.TaxpayerType != sifen.TaxpayerNatural && p.TaxpayerType != sifen.TaxpayerLegal {
		return "", 0, fmt.Errorf("sifen: tipo de contribuyente inválido %d", p.TaxpayerType)
	}
	if p.IssueDate.IsZero() {
		return "", 0, fmt.Errorf("sifen: fecha de emisión obligatoria")
	}
	if p.EmissionType < 1 || p.EmissionType > 9 {
		return "", 0, fmt.Errorf("sifen: tipo de emisión inválido %d", p.EmissionType)
	}
	code, err := fixed(p.SecurityCode, 9, "código de seguridad")
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%02d", p.DocType)
	b.WriteString(leftPad(ruc, 8))
	b.WriteString(p.RUCCheckDigit)
	b.WriteString(est)
	b.WriteString(exp)
	fmt.Fprintf(&b, "%07d", p.SequenceNumber)
	b.WriteString(strconv.Itoa(p.TaxpayerType))
	b.WriteString(p.IssueDate.Format("20060102"))
	b.WriteString(strconv.Itoa(p.EmissionType))
	b.WriteString(code)

	body := b.String()
	dv := sifen.CheckDigit(body)
	return body + strconv.Itoa(dv), dv, nil
}

// ValidateCDC comprueba longitud, formato numérico y dígito verificador.
func ValidateCDC(cdc string) error {
	if len(cdc) != CDCLength || !isDigits(cdc) {
		return fmt.Errorf("sifen: CDC debe tener %d dígitos", CDCLength)
	}
	want := strconv.Itoa(sifen.CheckDigit(cdc[:CDCLength-1]))
	if cdc[CDCLength-1:] != want {
		return fmt.Errorf("sifen: DV del CDC inválido: esperado %s", want)
	}
	return nil
}

// fixed rellena con ceros a la izquierda y exige exactamente n dígitos.
func fixed(v string, n int, field string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > n || !isDigits(v) {
		return "", fmt.Errorf("sifen: %s inválido %q", field, v)
	}
	return leftPad(v, n), nil
}

func leftPad(v string, n int) string {
	if len(v) >= n {
		return v
	}
	return strings.Repeat("0", n-len(v)) + v
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
