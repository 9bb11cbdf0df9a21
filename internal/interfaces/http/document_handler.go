package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

// DocumentHandler maneja el ciclo de vida de los documentos electrónicos (protegido).
type DocumentHandler struct {
	svc  *billing.Service
	kude *billing.KuDEUseCase
	log  zerolog.Logger
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(svc *billing.Service, kude *billing.KuDEUseCase, log zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, kude: kude, log: log}
}

// Create godoc
// @Summary      Emitir documento electrónico
// @Description  Crea el documento, le asigna número del talonario y lo firma. Con draft_only queda en borrador.
// @Tags         documents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateDocumentRequest  true  "documento"
// @Success      201   {object}  dto.DocumentResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/documents [post]
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	if entity.DocumentType(in.DocType).IsNote() {
		return badRequest(c, "las notas se emiten con POST /api/documents/:id/notes")
	}
	if !inScope(c, in.AuthorizationID) {
		return outOfScope(c)
	}
	draft := toDraftInput(in)

	var (
		doc *entity.Document
		err error
	)
	if in.DraftOnly {
		doc, err = h.svc.CreateDraft(c.Context(), draft)
	} else {
		doc, err = h.svc.AllocateAndSign(c.Context(), draft)
	}
	if err != nil {
		if doc != nil {
			return respondDocumentError(c, h.log, err, doc.ID)
		}
		return respondError(c, h.log, err)
	}
	return h.respondDocument(c, fiber.StatusCreated, doc.ID)
}

// CreateNote godoc
// @Summary      Emitir nota de crédito o débito
// @Tags         documents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                     true  "documento de origen"
// @Param        body  body      dto.CreateDocumentRequest  true  "nota (doc_type 5 o 6)"
// @Success      201   {object}  dto.DocumentResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/notes [post]
func (h *DocumentHandler) CreateNote(c *fiber.Ctx) error {
	origin, ok, err := h.loadInScope(c)
	if !ok {
		return err
	}
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	if !entity.DocumentType(in.DocType).IsNote() {
		return badRequest(c, "doc_type debe ser nota de crédito (5) o débito (6)")
	}
	draft := toDraftInput(in)
	draft.RelatedDocumentID = origin.ID
	if draft.AuthorizationID == "" {
		draft.AuthorizationID = origin.AuthorizationID
	}
	if draft.EstablishmentID == "" {
		draft.EstablishmentID = origin.EstablishmentID
		draft.ExpeditionCode = origin.ExpeditionCode
	}
	if !inScope(c, draft.AuthorizationID) {
		return outOfScope(c)
	}

	var doc *entity.Document
	if in.DraftOnly {
		doc, err = h.svc.CreateNote(c.Context(), draft)
	} else {
		doc, err = h.svc.AllocateAndSign(c.Context(), draft)
	}
	if err != nil {
		if doc != nil {
			return respondDocumentError(c, h.log, err, doc.ID)
		}
		return respondError(c, h.log, err)
	}
	return h.respondDocument(c, fiber.StatusCreated, doc.ID)
}

// GetByID godoc
// @Summary      Obtener documento con sus líneas
// @Tags         documents
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del documento"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id} [get]
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	if _, ok, err := h.loadInScope(c); !ok {
		return err
	}
	return h.respondDocument(c, fiber.StatusOK, c.Params("id"))
}

// Update godoc
// @Summary      Editar documento no entregado
// @Description  Un documento firmado pierde la firma y vuelve a NUMBERED conservando su número.
// @Tags         documents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                   true  "ID del documento"
// @Param        body  body      dto.EditDocumentRequest  true  "cambios"
// @Success      200   {object}  dto.DocumentResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/documents/{id} [put]
func (h *DocumentHandler) Update(c *fiber.Ctx) error {
	doc, ok, err := h.loadInScope(c)
	if !ok {
		return err
	}
	var in dto.EditDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	edit := billing.EditInput{IssueDate: in.IssueDate, NetPrices: in.NetPrices}
	if in.Counterparty != nil {
		cp := toCounterparty(*in.Counterparty)
		edit.Counterparty = &cp
	}
	if in.Lines != nil {
		edit.Lines = toLineInputs(in.Lines)
	}
	if _, err := h.svc.EditDraft(c.Context(), doc.ID, edit); err != nil {
		return respondError(c, h.log, err)
	}
	return h.respondDocument(c, fiber.StatusOK, doc.ID)
}

// Sign godoc
// @Summary      Firmar documento numerado
// @Description  Idempotente: sobre un documento ya firmado devuelve los artefactos existentes.
// @Tags         documents
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del documento"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/sign [post]
func (h *DocumentHandler) Sign(c *fiber.Ctx) error {
	doc, ok, err := h.loadInScope(c)
	if !ok {
		return err
	}
	if doc.Status == entity.StatusDraft {
		if _, err := h.svc.Allocate(c.Context(), doc.ID); err != nil {
			return respondError(c, h.log, err)
		}
	}
	if _, err := h.svc.Sign(c.Context(), doc.ID); err != nil {
		return respondError(c, h.log, err)
	}
	return h.respondDocument(c, fiber.StatusOK, doc.ID)
}

// Void godoc
// @Summary      Anular documento liberando su número
// @Tags         documents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "ID del documento"
// @Param        body  body      dto.ReasonRequest  true  "motivo"
// @Success      200   {object}  dto.DocumentResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/void [post]
func (h *DocumentHandler) Void(c *fiber.Ctx) error {
	doc, ok, err := h.loadInScope(c)
	if !ok {
		return err
	}
	var in dto.ReasonRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	if _, err := h.svc.Void(c.Context(), doc.ID, in.Reason); err != nil {
		return respondError(c, h.log, err)
	}
	return h.respondDocument(c, fiber.StatusOK, doc.ID)
}

// VoidWithCredit godoc
// @Summary      Anular documento aprobado mediante nota de crédito
// @Tags         documents
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "ID del documento"
// @Param        body  body      dto.ReasonRequest  true  "motivo"
// @Success      201   {object}  dto.VoidWithCreditResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/void-with-credit [post]
func (h *DocumentHandler) VoidWithCredit(c *fiber.Ctx) error {
	doc, ok, err := h.loadInScope(c)
	if !ok {
		return err
	}
	var in dto.ReasonRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	res, err := h.svc.VoidWithCredit(c.Context(), doc.ID, in.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.VoidWithCreditResponse{
		Original:   dto.NewDocumentResponse(res.Original, nil),
		CreditNote: dto.NewDocumentResponse(res.CreditNote, nil),
	})
}

// KuDE godoc
// @Summary      Descargar KuDE en PDF
// @Tags         documents
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path      string  true  "ID del documento"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/kude [get]
func (h *DocumentHandler) KuDE(c *fiber.Ctx) error {
	doc, ok, err := h.loadInScope(c)
	if !ok {
		return err
	}
	pdf, filename, err := h.kude.Download(c.Context(), doc.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(pdf)
}

// loadInScope carga el documento :id y verifica el alcance del token.
// Con ok=false la respuesta ya fue escrita y err es lo que debe devolver el handler.
func (h *DocumentHandler) loadInScope(c *fiber.Ctx) (*entity.Document, bool, error) {
	doc, _, err := h.svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return nil, false, respondError(c, h.log, err)
	}
	if !inScope(c, doc.AuthorizationID) {
		return nil, false, outOfScope(c)
	}
	return doc, true, nil
}

func (h *DocumentHandler) respondDocument(c *fiber.Ctx, status int, id string) error {
	doc, lines, err := h.svc.Get(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(status).JSON(dto.NewDocumentResponse(doc, lines))
}

func toDraftInput(in dto.CreateDocumentRequest) billing.DraftInput {
	out := billing.DraftInput{
		DocType:         entity.DocumentType(in.DocType),
		AuthorizationID: in.AuthorizationID,
		EstablishmentID: in.EstablishmentID,
		ExpeditionCode:  in.ExpeditionCode,
		Currency:        in.Currency,
		Counterparty:    toCounterparty(in.Counterparty),
		NetPrices:       in.NetPrices,
		Lines:           toLineInputs(in.Lines),
	}
	if in.IssueDate != nil {
		out.IssueDate = *in.IssueDate
	}
	return out
}

func toCounterparty(in dto.CounterpartyRequest) entity.Counterparty {
	ruc, dv := sifen.SplitRUC(in.RUC)
	if ruc != "" && dv == "" {
		dv = strconv.Itoa(sifen.CheckDigit(ruc))
	}
	return entity.Counterparty{
		Name:           in.Name,
		RUC:            ruc,
		RUCCheckDigit:  dv,
		DocumentNumber: in.DocumentNumber,
		Email:          in.Email,
		Address:        in.Address,
	}
}

func toLineInputs(in []dto.LineRequest) []billing.LineInput {
	out := make([]billing.LineInput, 0, len(in))
	for _, l := range in {
		out = append(out, billing.LineInput{
			Code:          l.Code,
			Description:   l.Description,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			ExemptPercent: l.ExemptPercent,
			Percent5:      l.Percent5,
			Percent10:     l.Percent10,
		})
	}
	return out
}
