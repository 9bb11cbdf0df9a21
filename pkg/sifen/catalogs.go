// Package sifen contiene catálogos y validaciones alineados al Manual Técnico
// del Sistema Integrado de Facturación Electrónica Nacional (SET, Paraguay) v150.
package sifen

import "strings"

// Namespace del esquema de documentos y servicios SIFEN.
const Namespace = "http://ekuatia.set.gov.py/sifen/xsd"

// FormatVersion versión del formato del DE (dVerFor).
const FormatVersion = "150"

// =============================================================================
// Ambientes y endpoints
// =============================================================================

const (
	EnvTest       = "test"
	EnvProduction = "prod"
)

// Endpoints URLs de los servicios web por ambiente.
type Endpoints struct {
	RecepLote  string // siRecepLoteDE
	ResultLote string // siResultLoteDE
	QRBase     string // consulta pública del KuDE
}

// EndpointsFor devuelve los endpoints del ambiente (test por defecto).
func EndpointsFor(env string) Endpoints {
	if strings.EqualFold(env, EnvProduction) {
		return Endpoints{
			RecepLote:  "https://sifen.set.gov.py/de/ws/async/recibe-lote.wsdl",
			ResultLote: "https://sifen.set.gov.py/de/ws/consultas/consulta-lote.wsdl",
			QRBase:     "https://ekuatia.set.gov.py/consultas/qr?",
		}
	}
	return Endpoints{
		RecepLote:  "https://sifen-test.set.gov.py/de/ws/async/recibe-lote.wsdl",
		ResultLote: "https://sifen-test.set.gov.py/de/ws/consultas/consulta-lote.wsdl",
		QRBase:     "https://ekuatia.set.gov.py/consultas-test/qr?",
	}
}

// =============================================================================
// iTiDE - Tipo de documento electrónico
// =============================================================================

var documentTypeDescriptions = map[int]string{
	1: "Factura electrónica",
	4: "Autofactura electrónica",
	5: "Nota de crédito electrónica",
	6: "Nota de débito electrónica",
	7: "Nota de remisión electrónica",
}

// DocumentTypeDescription devuelve dDesTiDE para el código iTiDE.
func DocumentTypeDescription(code int) string {
	return documentTypeDescriptions[code]
}

// =============================================================================
// iTipEmi - Tipo de emisión
// =============================================================================

const (
	EmissionNormal      = 1
	EmissionContingency = 2
)

// EmissionDescription devuelve dDesTipEmi.
func EmissionDescription(code int) string {
	if code == EmissionContingency {
		return "Contingencia"
	}
	return "Normal"
}

// =============================================================================
// iTipCont - Tipo de contribuyente
// =============================================================================

const (
	TaxpayerNatural = 1 // Persona física
	TaxpayerLegal   = 2 // Persona jurídica
)

// =============================================================================
// iNatRec / iTiOpe - Naturaleza del receptor y tipo de operación
// =============================================================================

const (
	ReceiverTaxpayer    = 1
	ReceiverNonTaxpayer = 2

	OperationB2B = 1
	OperationB2C = 2
)

// =============================================================================
// iTImp / iAfecIVA - Impuesto afectado y afectación tributaria
// =============================================================================

const (
	TaxIVA = 1

	AffectTaxed      = 1 // Gravado IVA
	AffectExonerated = 2
	AffectExempt     = 3
	AffectPartial    = 4 // Gravado parcial (grav-exento)
)

// AffectDescription devuelve dDesAfecIVA.
func AffectDescription(code int) string {
	switch code {
	case AffectTaxed:
		return "Gravado IVA"
	case AffectExonerated:
		return "Exonerado (Art. 100 - Ley 6380/2019)"
	case AffectExempt:
		return "Exento"
	case AffectPartial:
		return "Gravado parcial (Grav-Exento)"
	}
	return ""
}

// =============================================================================
// iMotEmi - Motivo de emisión de nota de crédito/débito
// =============================================================================

const (
	NoteReasonReturnAndPriceAdjust = 1
	NoteReasonReturn               = 2
	NoteReasonDiscount             = 3
	NoteReasonBonus                = 4
	NoteReasonBadDebt              = 5
	NoteReasonPriceAdjust          = 8
)

// NoteReasonDescription devuelve dDesMotEmi.
func NoteReasonDescription(code int) string {
	switch code {
	case NoteReasonReturnAndPriceAdjust:
		return "Devolución y Ajuste de precios"
	case NoteReasonReturn:
		return "Devolución"
	case NoteReasonDiscount:
		return "Descuento"
	case NoteReasonBonus:
		return "Bonificación"
	case NoteReasonBadDebt:
		return "Crédito incobrable"
	case NoteReasonPriceAdjust:
		return "Ajuste de precio"
	}
	return ""
}

// =============================================================================
// Códigos de respuesta de los servicios de lote
// =============================================================================

const (
	CodeBatchReceived    = "0300" // Lote recibido con éxito
	CodeBatchNotQueued   = "0301" // Lote no encolado para procesamiento
	CodeBatchNonexistent = "0360" // Número de lote inexistente
	CodeBatchProcessing  = "0361" // Lote en procesamiento
	CodeBatchConcluded   = "0362" // Procesamiento de lote concluido

	ResultApproved            = "Aprobado"
	ResultApprovedWithRemarks = "Aprobado con observación"
	ResultRejected            = "Rechazado"
)

// IsApproved indica si dEstRes corresponde a un DE aprobado.
func IsApproved(estRes string) bool {
	return strings.HasPrefix(strings.TrimSpace(estRes), ResultApproved)
}

// MaxBatchSize cantidad máxima de DE por lote aceptada por siRecepLoteDE.
const MaxBatchSize = 50
