package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
)

// RequireAuthorizationScope verifica que un token limitado a un timbrado solo opere sobre
// ese timbrado. El timbrado de la ruta se toma del parámetro param. Debe usarse DESPUÉS
// de AuthMiddleware.
//
// Comportamiento:
//   - Token sin timbrado → pasa (alcance global).
//   - Timbrado distinto al de la ruta → 403 OUT_OF_SCOPE.
func RequireAuthorizationScope(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !inScope(c, c.Params(param)) {
			return outOfScope(c)
		}
		return c.Next()
	}
}

// inScope indica si el token puede operar sobre authorizationID.
func inScope(c *fiber.Ctx, authorizationID string) bool {
	scope := GetAuthorizationID(c)
	return scope == "" || scope == authorizationID
}

func outOfScope(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
		Code:    "OUT_OF_SCOPE",
		Message: "el token no está habilitado para este timbrado",
	})
}
