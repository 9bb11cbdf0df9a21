package sifen

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/domain"
	pkgsifen "github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

// ── Constantes SOAP ───────────────────────────────────────────────────────────

const (
	soapNS12        = "http://www.w3.org/2003/05/soap-envelope"
	soapContentType = "application/soap+xml; charset=utf-8"
	maxResponseSize = 1 << 20 // 1 MB
)

// ── Configuración ────────────────────────────────────────────────────────────

// SOAPConfig parámetros del cliente. RecepURL/ResultURL vacíos toman los endpoints del ambiente.
type SOAPConfig struct {
	Env       string
	Cert      tls.Certificate // certificado del contribuyente para TLS mutuo
	Timeout   time.Duration
	RecepURL  string
	ResultURL string
}

// ── Implementación SOAP ──────────────────────────────────────────────────────

// SOAPBatchClient implementa billing.BatchTransport sobre los servicios web de la SET.
type SOAPBatchClient struct {
	httpClient *http.Client
	recepURL   string
	resultURL  string
	log        zerolog.Logger
	requestID  atomic.Int64
}

// NewSOAPBatchClient construye el cliente con TLS mutuo y un timeout generoso (60 s por defecto),
// ya que la SET puede tardar varios segundos en responder.
func NewSOAPBatchClient(cfg SOAPConfig, log zerolog.Logger) *SOAPBatchClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if len(cfg.Cert.Certificate) > 0 {
		tlsCfg.Certificates = []tls.Certificate{cfg.Cert}
	}
	endpoints := pkgsifen.EndpointsFor(cfg.Env)
	c := &SOAPBatchClient{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: tlsCfg, Proxy: http.ProxyFromEnvironment},
		},
		recepURL:  firstNonEmpty(cfg.RecepURL, wsdlToEndpoint(endpoints.RecepLote)),
		resultURL: firstNonEmpty(cfg.ResultURL, wsdlToEndpoint(endpoints.ResultLote)),
		log:       log.With().Str("component", "sifen_soap").Logger(),
	}
	c.requestID.Store(time.Now().Unix())
	return c
}

// WithHTTPClient reemplaza el cliente HTTP (tests).
func (c *SOAPBatchClient) WithHTTPClient(hc *http.Client) *SOAPBatchClient {
	c.httpClient = hc
	return c
}

// ── Estructuras SOAP ─────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name   `xml:"soap:Envelope"`
	XmlnsS  string     `xml:"xmlns:soap,attr"`
	Header  soapHeader `xml:"soap:Header"`
	Body    soapBody   `xml:"soap:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soap:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// rEnvioLote cuerpo de siRecepLoteDE.
type rEnvioLote struct {
	XMLName xml.Name `xml:"rEnvioLote"`
	Xmlns   string   `xml:"xmlns,attr"`
	DID     int64    `xml:"dId"`
	XDE     string   `xml:"xDE"` // ZIP del rLoteDE en Base64
}

// rEnviConsLoteDe cuerpo de siResultLoteDE.
type rEnviConsLoteDe struct {
	XMLName       xml.Name `xml:"rEnviConsLoteDe"`
	Xmlns         string   `xml:"xmlns,attr"`
	DID           int64    `xml:"dId"`
	DProtConsLote string   `xml:"dProtConsLote"`
}

// ── Estructuras de respuesta ─────────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	RecepLote  *rResEnviLoteDe     `xml:"rResEnviLoteDe"`
	ResultLote *rResEnviConsLoteDe `xml:"rResEnviConsLoteDe"`
	Fault      *soapFault          `xml:"Fault"`
}

type rResEnviLoteDe struct {
	DFecProc      string `xml:"dFecProc"`
	DCodRes       string `xml:"dCodRes"`
	DMsgRes       string `xml:"dMsgRes"`
	DProtConsLote string `xml:"dProtConsLote"`
	DTpoProces    string `xml:"dTpoProces"`
}

type rResEnviConsLoteDe struct {
	DFecProc     string         `xml:"dFecProc"`
	DCodResLot   string         `xml:"dCodResLot"`
	DMsgResLot   string         `xml:"dMsgResLot"`
	GResProcLote []gResProcLote `xml:"gResProcLote"`
}

type gResProcLote struct {
	ID       string     `xml:"id"`
	DEstRes  string     `xml:"dEstRes"`
	DProtAut string     `xml:"dProtAut"`
	GResProc []gResProc `xml:"gResProc"`
}

type gResProc struct {
	DCodRes string `xml:"dCodRes"`
	DMsgRes string `xml:"dMsgRes"`
}

// SOAP 1.2: Code/Value y Reason/Text.
type soapFault struct {
	Code   string `xml:"Code>Value"`
	Reason string `xml:"Reason>Text"`
}

// ── Submit ───────────────────────────────────────────────────────────────────

// Submit comprime el lote, lo envía a siRecepLoteDE y devuelve dProtConsLote.
func (c *SOAPBatchClient) Submit(ctx context.Context, items []billing.BatchItem) (string, error) {
	if len(items) > pkgsifen.MaxBatchSize {
		return "", fmt.Errorf("%w: el lote admite hasta %d documentos", domain.ErrInvalidInput, pkgsifen.MaxBatchSize)
	}
	zipBytes, err := CompressLot(items)
	if err != nil {
		return "", err
	}
	body := &rEnvioLote{
		Xmlns: pkgsifen.Namespace,
		DID:   c.requestID.Add(1),
		XDE:   base64.StdEncoding.EncodeToString(zipBytes),
	}
	resp, err := c.call(ctx, c.recepURL, body)
	if err != nil {
		return "", err
	}
	r := resp.RecepLote
	if r == nil {
		return "", fmt.Errorf("sifen: respuesta de siRecepLoteDE vacía o inesperada")
	}
	if r.DCodRes != pkgsifen.CodeBatchReceived || r.DProtConsLote == "" || r.DProtConsLote == "0" {
		return "", fmt.Errorf("sifen: lote no encolado [%s]: %s", r.DCodRes, r.DMsgRes)
	}
	c.log.Info().Str("batch_id", r.DProtConsLote).Int("documents", len(items)).Msg("lote recibido por la SET")
	return r.DProtConsLote, nil
}

// ── Query ────────────────────────────────────────────────────────────────────

// Query consulta siResultLoteDE y traduce dCodResLot al estado del lote.
func (c *SOAPBatchClient) Query(ctx context.Context, batchID string) (*billing.BatchStatus, error) {
	body := &rEnviConsLoteDe{
		Xmlns:         pkgsifen.Namespace,
		DID:           c.requestID.Add(1),
		DProtConsLote: batchID,
	}
	resp, err := c.call(ctx, c.resultURL, body)
	if err != nil {
		return nil, err
	}
	r := resp.ResultLote
	if r == nil {
		return nil, fmt.Errorf("sifen: respuesta de siResultLoteDE vacía o inesperada")
	}
	status := &billing.BatchStatus{BatchID: batchID}
	switch r.DCodResLot {
	case pkgsifen.CodeBatchNonexistent:
		status.State = billing.BatchQueryNonexistent
	case pkgsifen.CodeBatchProcessing:
		status.State = billing.BatchQueryProcessing
	case pkgsifen.CodeBatchConcluded:
		status.State = billing.BatchQueryConcluded
		for _, g := range r.GResProcLote {
			res := billing.DocumentResult{ControlCode: g.ID, Approved: pkgsifen.IsApproved(g.DEstRes)}
			codes := make([]string, 0, len(g.GResProc))
			msgs := make([]string, 0, len(g.GResProc))
			for _, p := range g.GResProc {
				codes = append(codes, p.DCodRes)
				msgs = append(msgs, p.DMsgRes)
			}
			res.Code = strings.Join(codes, ",")
			res.Message = strings.Join(msgs, "; ")
			if res.Message == "" {
				res.Message = g.DEstRes
			}
			status.Results = append(status.Results, res)
		}
	default:
		return nil, fmt.Errorf("sifen: código de consulta de lote desconocido [%s]: %s", r.DCodResLot, r.DMsgResLot)
	}
	return status, nil
}

// ── Transporte ───────────────────────────────────────────────────────────────

// call serializa el envelope, hace el POST y desempaqueta la respuesta.
// Fallas de red y respuestas 5xx se marcan como transitorias.
func (c *SOAPBatchClient) call(ctx context.Context, url string, content interface{}) (*soapResponseBody, error) {
	envelope := soapEnvelope{XmlnsS: soapNS12, Body: soapBody{Content: content}}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", soapContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soap: cancelado: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: soap: llamada HTTP fallida: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: soap: leer respuesta: %v", domain.ErrTransient, err)
	}
	if resp.StatusCode >= 500 {
		c.log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("SET respondió con error de servidor")
		if fault := parseFault(raw); fault != "" {
			return nil, fmt.Errorf("%w: soap: HTTP %d: %s", domain.ErrTransient, resp.StatusCode, fault)
		}
		return nil, fmt.Errorf("%w: soap: HTTP %d", domain.ErrTransient, resp.StatusCode)
	}

	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("soap: no se pudo parsear la respuesta (HTTP %d): %w", resp.StatusCode, err)
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("soap: Fault [%s]: %s", env.Body.Fault.Code, env.Body.Fault.Reason)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("soap: HTTP %d", resp.StatusCode)
	}
	return &env.Body, nil
}

func parseFault(raw []byte) string {
	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil || env.Body.Fault == nil {
		return ""
	}
	return env.Body.Fault.Code + ": " + env.Body.Fault.Reason
}

// wsdlToEndpoint quita el sufijo ".wsdl" de la URL publicada: el POST va al servicio.
func wsdlToEndpoint(u string) string {
	return strings.TrimSuffix(u, ".wsdl")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ billing.BatchTransport = (*SOAPBatchClient)(nil)
