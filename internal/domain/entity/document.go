package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType es el tipo de documento electrónico SIFEN (iTiDE).
type DocumentType int

const (
	DocTypeInvoice       DocumentType = 1 // Factura electrónica
	DocTypeSelfBilling   DocumentType = 4 // Autofactura electrónica
	DocTypeCreditNote    DocumentType = 5 // Nota de crédito electrónica
	DocTypeDebitNote     DocumentType = 6 // Nota de débito electrónica
	DocTypeRemissionNote DocumentType = 7 // Nota de remisión electrónica
)

// Valid indica si el tipo pertenece al catálogo soportado.
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeInvoice, DocTypeSelfBilling, DocTypeCreditNote, DocTypeDebitNote, DocTypeRemissionNote:
		return true
	}
	return false
}

// IsNote indica si el tipo requiere un documento de origen (NC/ND).
func (t DocumentType) IsNote() bool {
	return t == DocTypeCreditNote || t == DocTypeDebitNote
}

// Estado del ciclo de vida del documento.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusNumbered  DocumentStatus = "NUMBERED"
	StatusSigned    DocumentStatus = "SIGNED"
	StatusSubmitted DocumentStatus = "SUBMITTED"
	StatusResolved  DocumentStatus = "RESOLVED"
	StatusVoided    DocumentStatus = "VOIDED"
)

// Estado del lote en la SET.
// BatchDispatching: el documento fue tomado para un lote pero el transporte aún no devolvió
// número de lote. Si queda así más allá del período de gracia, ResetStuckBatch lo devuelve a SIGNED.
type BatchState string

const (
	BatchNone        BatchState = "NONE"
	BatchDispatching BatchState = "DISPATCHING"
	BatchReceived    BatchState = "RECEIVED"
	BatchProcessing  BatchState = "PROCESSING"
	BatchConcluded   BatchState = "CONCLUDED"
)

// Resultado de la SET para el documento.
type AuthorityState string

const (
	AuthorityNone     AuthorityState = "NONE"
	AuthorityApproved AuthorityState = "APPROVED"
	AuthorityRejected AuthorityState = "REJECTED"
)

// Forma de anulación.
type VoidKind string

const (
	VoidNone     VoidKind = "NONE"
	VoidReleased VoidKind = "RELEASED"  // número devuelto al talonario
	VoidByCredit VoidKind = "BY_CREDIT" // anulada mediante nota de crédito vinculada
)

// Counterparty datos del receptor (o del vendedor en autofacturas).
type Counterparty struct {
	Name           string
	RUC            string // sin DV; vacío para no contribuyentes
	RUCCheckDigit  string
	DocumentNumber string // cédula u otro documento cuando no hay RUC
	Email          string
	Address        string
}

// IsTaxpayer indica si el receptor es contribuyente (tiene RUC).
func (c Counterparty) IsTaxpayer() bool { return c.RUC != "" }

// Document es la cabecera del documento electrónico.
type Document struct {
	ID                string
	DocType           DocumentType
	AuthorizationID   string
	EstablishmentID   string
	EstablishmentCode string
	ExpeditionCode    string
	Series            string
	SequenceNumber    *int64 // nil hasta la asignación
	NumberRecordID    string
	IssueDate         time.Time
	Currency          string // ISO 4217 (PYG, USD)
	Counterparty      Counterparty

	Exempt             decimal.Decimal
	Base5              decimal.Decimal
	VAT5               decimal.Decimal
	Base10             decimal.Decimal
	VAT10              decimal.Decimal
	RawTotal           decimal.Decimal // Σ líneas antes del redondeo
	RoundingAdjustment decimal.Decimal // RawTotal − redondeado (convención heredada, ver tax.ReconstructTotal)
	Total              decimal.Decimal // total publicado
	RemainingBalance   decimal.Decimal // saldo disponible para notas de crédito

	Status         DocumentStatus
	BatchState     BatchState
	AuthorityState AuthorityState

	SecurityCode     string
	ControlCode      string // CDC (44 dígitos)
	SignedRef        string
	SignedXML        string
	QRLink           string // enlace de consulta del KuDE (dCarQR)
	BatchID          string // dProtConsLote
	SubmittedAt      *time.Time
	AuthorityCode    string
	AuthorityMessage string
	ResolvedAt       *time.Time

	RelatedDocumentID string // documento de origen de NC/ND

	VoidKind   VoidKind
	VoidReason string
	VoidedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked indica si el documento ya fue entregado a la SET o resuelto por ella.
// Un documento bloqueado no admite ediciones ni liberación del número.
func (d *Document) IsLocked() bool {
	switch d.BatchState {
	case BatchDispatching, BatchReceived, BatchProcessing, BatchConcluded:
		return true
	}
	return d.AuthorityState == AuthorityApproved || d.AuthorityState == AuthorityRejected
}

// IsSigned indica si el documento ya tiene CDC y XML firmado.
func (d *Document) IsSigned() bool {
	switch d.Status {
	case StatusSigned, StatusSubmitted, StatusResolved:
		return true
	case StatusVoided:
		return d.ControlCode != "" && d.SignedXML != ""
	}
	return false
}

// ClearSignature descarta los artefactos de firma. El código de seguridad acuñado no se reutiliza.
func (d *Document) ClearSignature() {
	d.SecurityCode = ""
	d.ControlCode = ""
	d.SignedRef = ""
	d.SignedXML = ""
	d.QRLink = ""
}

// NumberLabel devuelve el número con formato est-exp-número (ej: 001-001-0000001).
func (d *Document) NumberLabel() string {
	if d.SequenceNumber == nil {
		return ""
	}
	return d.EstablishmentCode + "-" + d.ExpeditionCode + "-" + PadSequence(*d.SequenceNumber)
}

// PadSequence rellena el número de documento a 7 dígitos.
func PadSequence(n int64) string {
	const width = 7
	s := []byte("0000000")
	for i := width - 1; i >= 0 && n > 0; i-- {
		s[i] = byte('0' + n%10)
		n /= 10
	}
	return string(s)
}
