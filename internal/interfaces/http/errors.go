package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sifen/internal/application/dto"
	"github.com/jhoicas/facturacion-sifen/internal/domain"
)

// errorCodes código estable por error de dominio; el primero que coincide gana.
var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrPoolExhausted, "POOL_EXHAUSTED"},
	{domain.ErrInsufficientNumbers, "INSUFFICIENT_NUMBERS"},
	{domain.ErrSecurityCodeExhausted, "SECURITY_CODE_EXHAUSTED"},
	{domain.ErrTransient, "AUTHORITY_UNAVAILABLE"},
	{domain.ErrInvalidProportions, "INVALID_PROPORTIONS"},
	{domain.ErrInvalidRange, "INVALID_RANGE"},
	{domain.ErrExceedsOriginBalance, "EXCEEDS_ORIGIN_BALANCE"},
	{domain.ErrOriginNotSigned, "ORIGIN_NOT_SIGNED"},
	{domain.ErrAuthorizationInvalid, "AUTHORIZATION_INVALID"},
	{domain.ErrInvalidInput, "VALIDATION"},
	{domain.ErrForbidden, "FORBIDDEN"},
	{domain.ErrDocumentLocked, "DOCUMENT_LOCKED"},
	{domain.ErrAlreadyReserved, "ALREADY_RESERVED"},
	{domain.ErrNotReserved, "NOT_RESERVED"},
	{domain.ErrInvalidTransition, "INVALID_TRANSITION"},
	{domain.ErrDuplicateRange, "DUPLICATE_RANGE"},
	{domain.ErrDuplicate, "DUPLICATE"},
	{domain.ErrConflict, "CONFLICT"},
	{domain.ErrNotFound, "NOT_FOUND"},
	{domain.ErrNotConfigured, "NOT_CONFIGURED"},
}

// respondError traduce un error de la aplicación a la respuesta HTTP según su categoría.
// Los errores internos se registran y no exponen detalle.
func respondError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	status, body := errorBody(c, log, err)
	return c.Status(status).JSON(body)
}

// respondDocumentError informa el error junto con el documento que quedó persistido.
func respondDocumentError(c *fiber.Ctx, log zerolog.Logger, err error, documentID string) error {
	status, body := errorBody(c, log, err)
	body.DocumentID = documentID
	return c.Status(status).JSON(body)
}

func errorBody(c *fiber.Ctx, log zerolog.Logger, err error) (int, dto.ErrorResponse) {
	kind := domain.Classify(err)
	status := statusFor(kind)
	if errors.Is(err, domain.ErrForbidden) {
		status = fiber.StatusForbidden
	}

	body := dto.ErrorResponse{
		Code:      codeFor(err),
		Message:   err.Error(),
		Retryable: kind == domain.KindRetryLater,
	}
	if kind == domain.KindInternal {
		log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("error interno")
		if body.Code == "INTERNAL" {
			body.Message = "error interno"
		}
	}
	return status, body
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindRetryLater:
		return fiber.StatusServiceUnavailable
	case domain.KindFixRequest:
		return fiber.StatusUnprocessableEntity
	case domain.KindConflict:
		return fiber.StatusConflict
	case domain.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func codeFor(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "INTERNAL"
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: message})
}
