package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
	"github.com/jhoicas/facturacion-sifen/internal/application/numbering"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
)

// NumberingHandler administra el talonario electrónico.
type NumberingHandler struct {
	alloc *numbering.Allocator
	log   zerolog.Logger
}

// NewNumberingHandler construye el handler.
func NewNumberingHandler(alloc *numbering.Allocator, log zerolog.Logger) *NumberingHandler {
	return &NumberingHandler{alloc: alloc, log: log}
}

// GenerateRange godoc
// @Summary      Cargar rango autorizado de numeración
// @Tags         numbering
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.GenerateRangeRequest  true  "rango [start, end]"
// @Success      201   {object}  dto.GenerateRangeResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/numbering/ranges [post]
func (h *NumberingHandler) GenerateRange(c *fiber.Ctx) error {
	var in dto.GenerateRangeRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	if !inScope(c, in.AuthorizationID) {
		return outOfScope(c)
	}
	n, err := h.alloc.GenerateRange(c.Context(), numbering.GenerateRangeInput{
		AuthorizationID: in.AuthorizationID,
		EstablishmentID: in.EstablishmentID,
		DocType:         entity.DocumentType(in.DocType),
		Series:          in.Series,
		Start:           in.Start,
		End:             in.End,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.GenerateRangeResponse{Created: n})
}

// PoolStatus godoc
// @Summary      Estado del talonario
// @Tags         numbering
// @Security     Bearer
// @Produce      json
// @Param        establishment_id  query     string  true  "establecimiento"
// @Param        doc_type          query     int     true  "tipo de documento"
// @Success      200               {object}  numbering.PoolStatus
// @Router       /api/numbering/pool [get]
func (h *NumberingHandler) PoolStatus(c *fiber.Ctx) error {
	estID := c.Query("establishment_id")
	docType := entity.DocumentType(c.QueryInt("doc_type"))
	if estID == "" || !docType.Valid() {
		return badRequest(c, "establishment_id y doc_type válidos son requeridos")
	}
	st, err := h.alloc.PoolStatus(c.Context(), estID, docType)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(st)
}
