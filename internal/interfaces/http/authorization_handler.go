package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
	"github.com/jhoicas/facturacion-sifen/internal/application/usecase"
)

// AuthorizationHandler alta administrativa de timbrados y establecimientos.
type AuthorizationHandler struct {
	uc  *usecase.AuthorizationUseCase
	log zerolog.Logger
}

// NewAuthorizationHandler construye el handler.
func NewAuthorizationHandler(uc *usecase.AuthorizationUseCase, log zerolog.Logger) *AuthorizationHandler {
	return &AuthorizationHandler{uc: uc, log: log}
}

// Create godoc
// @Summary      Registrar timbrado
// @Tags         authorizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateAuthorizationRequest  true  "timbrado"
// @Success      201   {object}  dto.AuthorizationResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/authorizations [post]
func (h *AuthorizationHandler) Create(c *fiber.Ctx) error {
	if GetAuthorizationID(c) != "" {
		return outOfScope(c)
	}
	var in dto.CreateAuthorizationRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	resp, err := h.uc.Create(c.Context(), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetByID godoc
// @Summary      Obtener timbrado
// @Tags         authorizations
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del timbrado"
// @Success      200  {object}  dto.AuthorizationResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/authorizations/{id} [get]
func (h *AuthorizationHandler) GetByID(c *fiber.Ctx) error {
	resp, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(resp)
}

// Deactivate godoc
// @Summary      Desactivar timbrado
// @Tags         authorizations
// @Security     Bearer
// @Param        id   path  string  true  "ID del timbrado"
// @Success      204
// @Router       /api/authorizations/{id}/deactivate [post]
func (h *AuthorizationHandler) Deactivate(c *fiber.Ctx) error {
	if err := h.uc.Deactivate(c.Context(), c.Params("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddEstablishment godoc
// @Summary      Agregar establecimiento al timbrado
// @Tags         authorizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                          true  "ID del timbrado"
// @Param        body  body      dto.CreateEstablishmentRequest  true  "establecimiento"
// @Success      201   {object}  dto.EstablishmentResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/authorizations/{id}/establishments [post]
func (h *AuthorizationHandler) AddEstablishment(c *fiber.Ctx) error {
	var in dto.CreateEstablishmentRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "cuerpo inválido")
	}
	resp, err := h.uc.AddEstablishment(c.Context(), c.Params("id"), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ListEstablishments godoc
// @Summary      Listar establecimientos del timbrado
// @Tags         authorizations
// @Security     Bearer
// @Produce      json
// @Param        id   path     string  true  "ID del timbrado"
// @Success      200  {array}  dto.EstablishmentResponse
// @Router       /api/authorizations/{id}/establishments [get]
func (h *AuthorizationHandler) ListEstablishments(c *fiber.Ctx) error {
	list, err := h.uc.ListEstablishments(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(list)
}
