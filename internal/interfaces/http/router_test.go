package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
	"github.com/jhoicas/facturacion-sifen/internal/application/numbering"
	"github.com/jhoicas/facturacion-sifen/internal/application/usecase"
	domsifen "github.com/jhoicas/facturacion-sifen/internal/domain/sifen"
	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/facturacion-sifen/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/facturacion-sifen/pkg/jwt"
)

// ── Dobles de prueba ──

type stubSigner struct {
	mu  sync.Mutex
	err error
}

func (f *stubSigner) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *stubSigner) Sign(_ context.Context, p billing.SignPayload) (*billing.SignedArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cdc := p.Document.ControlCode
	return &billing.SignedArtifact{
		Ref:    "digest-" + cdc,
		XML:    []byte(fmt.Sprintf(`<rDE><DE Id="%s"/></rDE>`, cdc)),
		QRLink: "https://ekuatia.set.gov.py/consultas-test/qr?Id=" + cdc,
	}, nil
}

type stubTransport struct {
	mu sync.Mutex
	n  int
}

func (t *stubTransport) Submit(_ context.Context, _ []billing.BatchItem) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return fmt.Sprintf("lote-%d", t.n), nil
}

func (t *stubTransport) Query(_ context.Context, batchID string) (*billing.BatchStatus, error) {
	return &billing.BatchStatus{BatchID: batchID, State: billing.BatchQueryProcessing}, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, _ billing.RenderInput) ([]byte, error) {
	return []byte("%PDF-1.4 kude"), nil
}

// ── Servidor de prueba ──

type testServer struct {
	t      *testing.T
	app    *fiber.App
	signer *stubSigner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	log := zerolog.Nop()
	alloc := numbering.NewAllocator(store, log)
	signer := &stubSigner{}
	svc := billing.NewService(billing.Deps{
		Store:     store,
		Allocator: alloc,
		Tax:       tax.NewEngine(2),
		CDC:       domsifen.NewCDCGenerator(),
		Signer:    signer,
		Transport: &stubTransport{},
	}, billing.DefaultConfig(), log)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Billing:         svc,
		KuDE:            billing.NewKuDEUseCase(store, stubRenderer{}),
		Allocator:       alloc,
		AuthorizationUC: usecase.NewAuthorizationUseCase(store, log),
		JWTSecret:       testJWTSecret,
		Log:             log,
	})
	return &testServer{t: t, app: app, signer: signer}
}

func (s *testServer) do(method, path, role string, body any) (*http.Response, []byte) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := pkgjwt.Generate(testJWTSecret, testUserID, "", role, testIssuer, testExpMin)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

// setupIssuer registra timbrado, establecimiento y, si rangeEnd > 0, un rango de facturas.
func (s *testServer) setupIssuer(rangeEnd int64) (authID, estID string) {
	resp, raw := s.do(http.MethodPost, "/api/authorizations", "admin", dto.CreateAuthorizationRequest{
		RUC: "80012345-0", TaxpayerType: 2, BusinessName: "Comercial Asunción S.A.",
		Number: "12345678", ValidFrom: "2024-01-01", ValidTo: "2030-12-31",
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(raw))
	authID = decode[dto.AuthorizationResponse](s.t, raw).ID

	resp, raw = s.do(http.MethodPost, "/api/authorizations/"+authID+"/establishments", "admin", dto.CreateEstablishmentRequest{
		Code: "001", Name: "Casa Central", ExpeditionCodes: []string{"001"},
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(raw))
	estID = decode[dto.EstablishmentResponse](s.t, raw).ID

	if rangeEnd > 0 {
		resp, raw = s.do(http.MethodPost, "/api/numbering/ranges", "admin", dto.GenerateRangeRequest{
			AuthorizationID: authID, EstablishmentID: estID, DocType: 1, Start: 1, End: rangeEnd,
		})
		require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(raw))
		assert.Equal(s.t, int(rangeEnd), decode[dto.GenerateRangeResponse](s.t, raw).Created)
	}
	return authID, estID
}

func invoiceBody(authID, estID string, p10 string) map[string]any {
	return map[string]any{
		"doc_type":         1,
		"authorization_id": authID,
		"establishment_id": estID,
		"expedition_code":  "001",
		"counterparty":     map[string]any{"name": "Cliente S.A.", "ruc": "80000000"},
		"lines": []map[string]any{{
			"code": "P-1", "description": "Servicio", "quantity": "1", "unit_price": "110000", "percent_10": p10,
		}},
	}
}

// ── Escenarios ──

func TestRouter_CicloCompleto(t *testing.T) {
	s := newTestServer(t)
	authID, estID := s.setupIssuer(5)

	resp, raw := s.do(http.MethodPost, "/api/documents", "emisor", invoiceBody(authID, estID, "100"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	doc := decode[dto.DocumentResponse](t, raw)
	assert.Equal(t, "SIGNED", doc.Status)
	assert.Equal(t, "001-001-0000001", doc.Number)
	assert.Len(t, doc.ControlCode, 44)
	assert.Equal(t, "10000", doc.VAT10.String())
	require.Len(t, doc.Lines, 1)

	resp, raw = s.do(http.MethodGet, "/api/numbering/pool?establishment_id="+estID+"&doc_type=1", "operador", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	pool := decode[numbering.PoolStatus](t, raw)
	assert.Equal(t, 4, pool.Free)
	assert.Equal(t, 1, pool.Reserved)

	resp, raw = s.do(http.MethodPost, "/api/batches/submit", "operador", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	sum := decode[billing.SubmitSummary](t, raw)
	require.Len(t, sum.Batches, 1)
	assert.Equal(t, []string{doc.ControlCode}, sum.Batches[0].ControlCodes)

	resp, raw = s.do(http.MethodGet, "/api/batches/pending", "operador", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"lote-1"}, decode[[]string](t, raw))

	resp, raw = s.do(http.MethodPost, "/api/batches/lote-1/results", "operador", dto.BatchResultsRequest{
		Results: []dto.BatchResultRequest{{CDC: doc.ControlCode, Approved: true, Code: "0260", Message: "Aprobado"}},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(raw))

	resp, raw = s.do(http.MethodGet, "/api/documents/"+doc.ID, "operador", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = decode[dto.DocumentResponse](t, raw)
	assert.Equal(t, "RESOLVED", doc.Status)
	assert.Equal(t, "APPROVED", doc.AuthorityState)

	// Un documento aprobado no se anula liberando el número.
	resp, raw = s.do(http.MethodPost, "/api/documents/"+doc.ID+"/void", "emisor", dto.ReasonRequest{Reason: "error"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := decode[dto.ErrorResponse](t, raw)
	assert.Equal(t, "DOCUMENT_LOCKED", errBody.Code)
	assert.False(t, errBody.Retryable)

	resp, raw = s.do(http.MethodGet, "/api/documents/"+doc.ID+"/kude", "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestRouter_BorradorEditarYFirmar(t *testing.T) {
	s := newTestServer(t)
	authID, estID := s.setupIssuer(3)

	body := invoiceBody(authID, estID, "100")
	body["draft_only"] = true
	resp, raw := s.do(http.MethodPost, "/api/documents", "emisor", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	doc := decode[dto.DocumentResponse](t, raw)
	assert.Equal(t, "DRAFT", doc.Status)
	assert.Empty(t, doc.Number)

	resp, raw = s.do(http.MethodPut, "/api/documents/"+doc.ID, "emisor", map[string]any{
		"counterparty": map[string]any{"name": "Otro Cliente", "document_number": "1234567"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "Otro Cliente", decode[dto.DocumentResponse](t, raw).CounterpartyName)

	resp, raw = s.do(http.MethodPost, "/api/documents/"+doc.ID+"/sign", "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	doc = decode[dto.DocumentResponse](t, raw)
	assert.Equal(t, "SIGNED", doc.Status)
	assert.Equal(t, "001-001-0000001", doc.Number)

	resp, raw = s.do(http.MethodPost, "/api/documents/"+doc.ID+"/void", "emisor", dto.ReasonRequest{Reason: "cliente desistió"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	doc = decode[dto.DocumentResponse](t, raw)
	assert.Equal(t, "VOIDED", doc.Status)
	assert.Equal(t, "RELEASED", doc.VoidKind)

	resp, raw = s.do(http.MethodGet, "/api/numbering/pool?establishment_id="+estID+"&doc_type=1", "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decode[numbering.PoolStatus](t, raw).Free, "el número anulado vuelve al talonario")
}

func TestRouter_Errores(t *testing.T) {
	s := newTestServer(t)
	authID, estID := s.setupIssuer(0)

	t.Run("talonario agotado es reintentable", func(t *testing.T) {
		resp, raw := s.do(http.MethodPost, "/api/documents", "emisor", invoiceBody(authID, estID, "100"))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decode[dto.ErrorResponse](t, raw)
		assert.Equal(t, "POOL_EXHAUSTED", body.Code)
		assert.True(t, body.Retryable)
	})

	t.Run("proporciones inválidas", func(t *testing.T) {
		resp, raw := s.do(http.MethodPost, "/api/documents", "emisor", invoiceBody(authID, estID, "90"))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "INVALID_PROPORTIONS", decode[dto.ErrorResponse](t, raw).Code)
	})

	t.Run("documento inexistente", func(t *testing.T) {
		resp, raw := s.do(http.MethodGet, "/api/documents/no-existe", "emisor", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decode[dto.ErrorResponse](t, raw).Code)
	})

	t.Run("nota por la ruta general", func(t *testing.T) {
		body := invoiceBody(authID, estID, "100")
		body["doc_type"] = 5
		resp, _ := s.do(http.MethodPost, "/api/documents", "emisor", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rango duplicado", func(t *testing.T) {
		in := dto.GenerateRangeRequest{AuthorizationID: authID, EstablishmentID: estID, DocType: 1, Start: 1, End: 2}
		resp, _ := s.do(http.MethodPost, "/api/numbering/ranges", "admin", in)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp, raw := s.do(http.MethodPost, "/api/numbering/ranges", "admin", in)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "DUPLICATE_RANGE", decode[dto.ErrorResponse](t, raw).Code)
	})

	t.Run("roles", func(t *testing.T) {
		resp, _ := s.do(http.MethodPost, "/api/numbering/ranges", "emisor", dto.GenerateRangeRequest{})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp, _ = s.do(http.MethodPost, "/api/batches/submit", "emisor", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp, _ = s.do(http.MethodGet, "/api/documents/x", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("lote desconocido", func(t *testing.T) {
		resp, _ := s.do(http.MethodPost, "/api/batches/lote-x/results", "operador", dto.BatchResultsRequest{})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRouter_NotaDeCredito(t *testing.T) {
	s := newTestServer(t)
	authID, estID := s.setupIssuer(3)
	resp, raw := s.do(http.MethodPost, "/api/numbering/ranges", "admin", dto.GenerateRangeRequest{
		AuthorizationID: authID, EstablishmentID: estID, DocType: 5, Start: 1, End: 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = s.do(http.MethodPost, "/api/documents", "emisor", invoiceBody(authID, estID, "100"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	origin := decode[dto.DocumentResponse](t, raw)

	note := map[string]any{
		"doc_type":     5,
		"counterparty": map[string]any{"name": "Cliente S.A.", "ruc": "80000000"},
		"lines": []map[string]any{{
			"code": "P-1", "description": "Devolución", "quantity": "1", "unit_price": "11000", "percent_10": "100",
		}},
	}
	resp, raw = s.do(http.MethodPost, "/api/documents/"+origin.ID+"/notes", "emisor", note)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	nc := decode[dto.DocumentResponse](t, raw)
	assert.Equal(t, origin.ID, nc.RelatedDocumentID)
	assert.Equal(t, "SIGNED", nc.Status)

	resp, raw = s.do(http.MethodGet, "/api/documents/"+origin.ID, "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "99000", decode[dto.DocumentResponse](t, raw).RemainingBalance.String())

	// Saldo insuficiente.
	note["lines"] = []map[string]any{{
		"code": "P-1", "description": "Devolución", "quantity": "1", "unit_price": "200000", "percent_10": "100",
	}}
	resp, raw = s.do(http.MethodPost, "/api/documents/"+origin.ID+"/notes", "emisor", note)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "EXCEEDS_ORIGIN_BALANCE", decode[dto.ErrorResponse](t, raw).Code)
}

func TestRouter_FirmaFallidaInformaDocumento(t *testing.T) {
	s := newTestServer(t)
	authID, estID := s.setupIssuer(5)
	s.signer.failWith(errors.New("hsm fuera de servicio"))

	resp, raw := s.do(http.MethodPost, "/api/documents", "emisor", invoiceBody(authID, estID, "100"))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode, string(raw))
	body := decode[dto.ErrorResponse](t, raw)
	require.NotEmpty(t, body.DocumentID, "el error identifica el documento numerado")

	resp, raw = s.do(http.MethodGet, "/api/documents/"+body.DocumentID, "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	doc := decode[dto.DocumentResponse](t, raw)
	assert.Equal(t, "NUMBERED", doc.Status)
	assert.Equal(t, "001-001-0000001", doc.Number)

	s.signer.failWith(nil)
	resp, raw = s.do(http.MethodPost, "/api/documents/"+body.DocumentID+"/sign", "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	doc = decode[dto.DocumentResponse](t, raw)
	assert.Equal(t, "SIGNED", doc.Status)
	assert.Equal(t, "001-001-0000001", doc.Number)
}
