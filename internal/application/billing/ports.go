package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	domsifen "github.com/jhoicas/facturacion-sifen/internal/domain/sifen"
	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
)

// TaxLineComputer calcula el desglose de IVA de una línea y valida el cuadre de totales.
// Lo implementa *tax.Engine; se registra en el arranque.
type TaxLineComputer interface {
	ComputeLine(p tax.Percents, r tax.Rates, grossUnitPrice, quantity decimal.Decimal, inclusiveOfTax bool) (tax.LineBreakdown, error)
	ValidatePercents(p tax.Percents) error
	Reconcile(t tax.Totals) error
}

// ControlCodeGenerator arma el CDC del documento (determinista) y devuelve su dígito verificador.
type ControlCodeGenerator interface {
	Generate(p domsifen.CDCParams) (controlCode string, checkDigit int, err error)
}

// SignPayload es todo lo necesario para construir y firmar el XML de un documento.
type SignPayload struct {
	Document      *entity.Document
	Lines         []*entity.DocumentLine
	Authorization *entity.FiscalAuthorization
	Establishment *entity.Establishment
	Origin        *entity.Document // documento asociado de NC/ND; nil en otros tipos
}

// SignedArtifact resultado opaco de la firma.
type SignedArtifact struct {
	Ref    string // DigestValue de la firma
	XML    []byte // rDE firmado
	QRLink string
}

// XMLSigner construye y firma el XML del documento. Los errores transitorios se envuelven con domain.ErrTransient.
type XMLSigner interface {
	Sign(ctx context.Context, p SignPayload) (*SignedArtifact, error)
}

// BatchItem documento firmado listo para un lote.
type BatchItem struct {
	ControlCode string
	SignedXML   []byte
}

// BatchQueryState estado del lote informado por la SET.
type BatchQueryState string

const (
	BatchQueryProcessing  BatchQueryState = "PROCESSING"
	BatchQueryConcluded   BatchQueryState = "CONCLUDED"
	BatchQueryNonexistent BatchQueryState = "NONEXISTENT"
)

// DocumentResult resultado de la SET para un documento del lote.
type DocumentResult struct {
	ControlCode string `json:"control_code"`
	Approved    bool   `json:"approved"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// BatchStatus respuesta de la consulta de lote.
type BatchStatus struct {
	BatchID string           `json:"batch_id"`
	State   BatchQueryState  `json:"state"`
	Results []DocumentResult `json:"results,omitempty"`
}

// BatchTransport envía lotes a la SET y consulta su resultado.
type BatchTransport interface {
	Submit(ctx context.Context, items []BatchItem) (batchID string, err error)
	Query(ctx context.Context, batchID string) (*BatchStatus, error)
}

// DocumentRenderer genera la representación gráfica (KuDE) de un documento firmado.
type DocumentRenderer interface {
	Render(ctx context.Context, in RenderInput) ([]byte, error)
}

// RenderInput datos para el KuDE.
type RenderInput struct {
	Document      *entity.Document
	Lines         []*entity.DocumentLine
	Authorization *entity.FiscalAuthorization
	Establishment *entity.Establishment
	QRLink        string
}
