package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
)

// CounterpartyRequest receptor del documento. RUC puede venir como "80012345-6".
type CounterpartyRequest struct {
	Name           string `json:"name"`
	RUC            string `json:"ruc,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	Email          string `json:"email,omitempty"`
	Address        string `json:"address,omitempty"`
}

// LineRequest ítem del documento. Los porcentajes exenta/5%/10% deben sumar 100.
type LineRequest struct {
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ExemptPercent decimal.Decimal `json:"exempt_percent"`
	Percent5      decimal.Decimal `json:"percent_5"`
	Percent10     decimal.Decimal `json:"percent_10"`
}

// CreateDocumentRequest body para POST /api/documents y POST /api/documents/:id/notes.
// En notas el documento de origen es el :id de la ruta.
type CreateDocumentRequest struct {
	DocType         int                 `json:"doc_type"`
	AuthorizationID string              `json:"authorization_id"`
	EstablishmentID string              `json:"establishment_id"`
	ExpeditionCode  string              `json:"expedition_code"`
	IssueDate       *time.Time          `json:"issue_date,omitempty"`
	Currency        string              `json:"currency,omitempty"`
	Counterparty    CounterpartyRequest `json:"counterparty"`
	NetPrices       bool                `json:"net_prices"`
	Lines           []LineRequest       `json:"lines"`
	// DraftOnly crea el borrador sin numerarlo ni firmarlo.
	DraftOnly bool `json:"draft_only,omitempty"`
}

// EditDocumentRequest body para PUT /api/documents/:id. Campos ausentes no se modifican.
type EditDocumentRequest struct {
	IssueDate    *time.Time           `json:"issue_date,omitempty"`
	Counterparty *CounterpartyRequest `json:"counterparty,omitempty"`
	NetPrices    bool                 `json:"net_prices"`
	Lines        []LineRequest        `json:"lines,omitempty"`
}

// DocumentLineResponse ítem con su desglose de IVA.
type DocumentLineResponse struct {
	LineNo        int             `json:"line_no"`
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ExemptPercent decimal.Decimal `json:"exempt_percent"`
	Percent5      decimal.Decimal `json:"percent_5"`
	Percent10     decimal.Decimal `json:"percent_10"`
	Total         decimal.Decimal `json:"total"`
	Exempt        decimal.Decimal `json:"exempt"`
	Base5         decimal.Decimal `json:"base_5"`
	VAT5          decimal.Decimal `json:"vat_5"`
	Base10        decimal.Decimal `json:"base_10"`
	VAT10         decimal.Decimal `json:"vat_10"`
}

// DocumentResponse documento electrónico para GET /api/documents/:id.
type DocumentResponse struct {
	ID                string                 `json:"id"`
	DocType           int                    `json:"doc_type"`
	AuthorizationID   string                 `json:"authorization_id"`
	EstablishmentID   string                 `json:"establishment_id"`
	Number            string                 `json:"number,omitempty"` // 001-001-0000001
	Series            string                 `json:"series,omitempty"`
	IssueDate         time.Time              `json:"issue_date"`
	Currency          string                 `json:"currency"`
	CounterpartyName  string                 `json:"counterparty_name"`
	CounterpartyRUC   string                 `json:"counterparty_ruc,omitempty"`
	Exempt            decimal.Decimal        `json:"exempt"`
	VAT5              decimal.Decimal        `json:"vat_5"`
	VAT10             decimal.Decimal        `json:"vat_10"`
	RawTotal          decimal.Decimal        `json:"raw_total"`
	Rounding          decimal.Decimal        `json:"rounding_adjustment"`
	Total             decimal.Decimal        `json:"total"`
	RemainingBalance  decimal.Decimal        `json:"remaining_balance"`
	Status            string                 `json:"status"`
	BatchState        string                 `json:"batch_state"`
	AuthorityState    string                 `json:"authority_state"`
	ControlCode       string                 `json:"cdc,omitempty"`
	QRLink            string                 `json:"qr_link,omitempty"`
	BatchID           string                 `json:"batch_id,omitempty"`
	AuthorityCode     string                 `json:"authority_code,omitempty"`
	AuthorityMessage  string                 `json:"authority_message,omitempty"`
	RelatedDocumentID string                 `json:"related_document_id,omitempty"`
	VoidKind          string                 `json:"void_kind,omitempty"`
	VoidReason        string                 `json:"void_reason,omitempty"`
	Lines             []DocumentLineResponse `json:"lines,omitempty"`
}

// VoidWithCreditResponse documento anulado y nota de crédito emitida.
type VoidWithCreditResponse struct {
	Original   DocumentResponse `json:"original"`
	CreditNote DocumentResponse `json:"credit_note"`
}

// NewDocumentResponse arma la respuesta; lines puede ser nil.
func NewDocumentResponse(doc *entity.Document, lines []*entity.DocumentLine) DocumentResponse {
	out := DocumentResponse{
		ID:                doc.ID,
		Number:            doc.NumberLabel(),
		DocType:           int(doc.DocType),
		AuthorizationID:   doc.AuthorizationID,
		EstablishmentID:   doc.EstablishmentID,
		Series:            doc.Series,
		IssueDate:         doc.IssueDate,
		Currency:          doc.Currency,
		CounterpartyName:  doc.Counterparty.Name,
		CounterpartyRUC:   doc.Counterparty.RUC,
		Exempt:            doc.Exempt,
		VAT5:              doc.VAT5,
		VAT10:             doc.VAT10,
		RawTotal:          doc.RawTotal,
		Rounding:          doc.RoundingAdjustment,
		Total:             doc.Total,
		RemainingBalance:  doc.RemainingBalance,
		Status:            string(doc.Status),
		BatchState:        string(doc.BatchState),
		AuthorityState:    string(doc.AuthorityState),
		ControlCode:       doc.ControlCode,
		QRLink:            doc.QRLink,
		BatchID:           doc.BatchID,
		AuthorityCode:     doc.AuthorityCode,
		AuthorityMessage:  doc.AuthorityMessage,
		RelatedDocumentID: doc.RelatedDocumentID,
		VoidReason:        doc.VoidReason,
	}
	if doc.VoidKind != entity.VoidNone {
		out.VoidKind = string(doc.VoidKind)
	}
	for _, l := range lines {
		out.Lines = append(out.Lines, DocumentLineResponse{
			LineNo:        l.LineNo,
			Code:          l.Code,
			Description:   l.Description,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			ExemptPercent: l.ExemptPercent,
			Percent5:      l.Percent5,
			Percent10:     l.Percent10,
			Total:         l.Total,
			Exempt:        l.Exempt,
			Base5:         l.Base5,
			VAT5:          l.VAT5,
			Base10:        l.Base10,
			VAT10:         l.VAT10,
		})
	}
	return out
}
