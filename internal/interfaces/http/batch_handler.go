package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
)

// BatchHandler opera los lotes enviados a la SET.
type BatchHandler struct {
	svc *billing.Service
	log zerolog.Logger
}

// NewBatchHandler construye el handler.
func NewBatchHandler(svc *billing.Service, log zerolog.Logger) *BatchHandler {
	return &BatchHandler{svc: svc, log: log}
}

// Submit godoc
// @Summary      Enviar documentos firmados en lotes
// @Tags         batches
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  billing.SubmitSummary
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/batches/submit [post]
func (h *BatchHandler) Submit(c *fiber.Ctx) error {
	sum, err := h.svc.SubmitBatch(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(sum)
}

// ResetStuck godoc
// @Summary      Devolver a SIGNED los documentos trabados en DISPATCHING
// @Tags         batches
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.CountResponse
// @Router       /api/batches/reset-stuck [post]
func (h *BatchHandler) ResetStuck(c *fiber.Ctx) error {
	n, err := h.svc.ResetStuckBatch(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.CountResponse{Count: n})
}

// Pending godoc
// @Summary      Lotes recibidos sin resultado
// @Tags         batches
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  string
// @Router       /api/batches/pending [get]
func (h *BatchHandler) Pending(c *fiber.Ctx) error {
	ids, err := h.svc.ListPendingBatches(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(ids)
}

// Poll godoc
// @Summary      Consultar el resultado de un lote en la SET
// @Tags         batches
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "número de lote"
// @Success      200  {object}  billing.BatchStatus
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/batches/{id}/poll [post]
func (h *BatchHandler) Poll(c *fiber.Ctx) error {
	st, err := h.svc.PollResult(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(st)
}

// Results godoc
// @Summary      Aplicar resultados de un lote
// @Tags         batches
// @Security     Bearer
// @Accept       json
// @Param        id    path  string                   true  "número de lote"
// @Param        body  body  dto.BatchResultsRequest  true  "resultados por CDC"
// @Success      204
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/batches/{id}/results [post]
func (h *BatchHandler) Results(c *fiber.Ctx) error {
	var in dto.BatchResultsRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	results := make([]billing.DocumentResult, 0, len(in.Results))
	for _, r := range in.Results {
		results = append(results, billing.DocumentResult{
			ControlCode: r.CDC,
			Approved:    r.Approved,
			Code:        r.Code,
			Message:     r.Message,
		})
	}
	if err := h.svc.OnBatchResult(c.Context(), c.Params("id"), results); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
