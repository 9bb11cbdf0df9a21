package sifen

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/sifen/signer"
	pkgsifen "github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

// DocumentSigner arma el rDE, lo firma con el certificado del contribuyente y agrega
// gCamFuFD con el enlace QR del KuDE. Implementa billing.XMLSigner.
type DocumentSigner struct {
	builder *XMLBuilderService
	signer  *signer.XMLDSigService
	cert    tls.Certificate
	qrBase  string
	log     zerolog.Logger
}

// NewDocumentSigner crea el firmador para el ambiente dado.
func NewDocumentSigner(cert tls.Certificate, env string, log zerolog.Logger) *DocumentSigner {
	return &DocumentSigner{
		builder: NewXMLBuilderService(),
		signer:  signer.NewXMLDSigService(),
		cert:    cert,
		qrBase:  pkgsifen.EndpointsFor(env).QRBase,
		log:     log.With().Str("component", "sifen_signer").Logger(),
	}
}

// Sign implementa billing.XMLSigner.
func (s *DocumentSigner) Sign(ctx context.Context, p billing.SignPayload) (*billing.SignedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unsigned, err := s.builder.Build(p)
	if err != nil {
		return nil, err
	}
	res, err := s.signer.Sign(unsigned, s.cert)
	if err != nil {
		return nil, err
	}

	doc := p.Document
	receiverID := doc.Counterparty.DocumentNumber
	link, err := signer.BuildQRLink(s.qrBase, signer.QRParams{
		Version:       pkgsifen.FormatVersion,
		ControlCode:   doc.ControlCode,
		IssueDate:     doc.IssueDate.Format(dateTimeLayout),
		ReceiverRUC:   doc.Counterparty.RUC,
		ReceiverDocID: receiverID,
		Total:         amount(doc.Total),
		TotalVAT:      amount(doc.VAT5.Add(doc.VAT10)),
		Items:         len(p.Lines),
		DigestValue:   res.DigestValue,
		CSCID:         p.Authorization.CSCID,
	}, p.Authorization.CSC1)
	if err != nil {
		return nil, err
	}

	signed, err := appendQR(res.XML, link)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("cdc", doc.ControlCode).Msg("rDE firmado")
	return &billing.SignedArtifact{Ref: res.DigestValue, XML: signed, QRLink: link}, nil
}

// appendQR agrega <gCamFuFD><dCarQR> al final del rDE (fuera del DE firmado).
func appendQR(xmlBytes []byte, link string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("sifen: parsear rDE firmado: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("sifen: rDE sin raíz")
	}
	root.CreateElement("gCamFuFD").CreateElement("dCarQR").SetText(link)
	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("sifen: serializar rDE: %w", err)
	}
	return out.Bytes(), nil
}

var _ billing.XMLSigner = (*DocumentSigner)(nil)
