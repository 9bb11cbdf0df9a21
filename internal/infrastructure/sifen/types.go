// Package sifen implementa los adaptadores hacia la SET: construcción del XML rDE (Manual
// Técnico v150), firma con el certificado del contribuyente, enlace QR del KuDE y el cliente
// SOAP de los servicios de lote (siRecepLoteDE / siResultLoteDE).
package sifen

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Formatos de fecha del DE.
const (
	dateTimeLayout = "2006-01-02T15:04:05"
	dateLayout     = "2006-01-02"
)

// Códigos de catálogo usados por el builder.
const (
	unitMeasureCode = "77" // cUniMed: unidad
	unitMeasureDesc = "UNI"
	countryPY       = "PRY"
	countryPYDesc   = "Paraguay"
	systemInvoicing = "1" // dSisFact: sistema del facturador
	presenceCode    = "1" // iIndPres: operación presencial
	presenceDesc    = "Operación presencial"
	conditionCash   = "1" // iCondOpe: contado
	conditionDesc   = "Contado"
	docAssocElec    = "1" // iTipDocAso: electrónico
	docAssocDesc    = "Electrónico"
)

var currencyDescriptions = map[string]string{
	"PYG": "Guarani",
	"USD": "US Dollar",
	"BRL": "Brazilian Real",
	"ARS": "Argentine Peso",
	"EUR": "Euro",
}

func currencyDescription(code string) string {
	if d, ok := currencyDescriptions[code]; ok {
		return d
	}
	return code
}

// cleanText normaliza a NFC, elimina caracteres de control y colapsa espacios.
// La SET rechaza el DE si los textos libres traen caracteres fuera del juego permitido.
func cleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
