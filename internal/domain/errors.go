package domain

import "errors"

// Errores genéricos de dominio (sin dependencias externas).
var (
	ErrNotFound      = errors.New("recurso no encontrado")
	ErrInvalidInput  = errors.New("entrada inválida")
	ErrDuplicate     = errors.New("recurso duplicado")
	ErrUnauthorized  = errors.New("no autorizado")
	ErrForbidden     = errors.New("acceso denegado")
	ErrConflict      = errors.New("conflicto con el estado actual")
	ErrNotConfigured = errors.New("colaborador externo no configurado")
)

// Agotamiento de recursos: se devuelven al llamador, nunca se reintentan solos.
var (
	ErrPoolExhausted       = errors.New("no quedan números libres para el establecimiento y tipo de documento")
	ErrInsufficientNumbers = errors.New("números libres insuficientes")
)

// Violaciones de consistencia (reglas de negocio o errores de programación).
var (
	ErrAlreadyReserved       = errors.New("el número ya está reservado")
	ErrNotReserved           = errors.New("el número no está reservado")
	ErrDocumentLocked        = errors.New("documento bloqueado: ya fue enviado o resuelto por la SET")
	ErrExceedsOriginBalance  = errors.New("el monto supera el saldo pendiente del documento de origen")
	ErrInvalidTransition     = errors.New("transición de estado no permitida")
	ErrOriginNotSigned       = errors.New("el documento de origen no tiene CDC")
	ErrSecurityCodeExhausted = errors.New("no se pudo generar un código de seguridad único")
	ErrAuthorizationInvalid  = errors.New("timbrado inactivo o fuera de vigencia")
)

// Errores de entrada numérica: se rechazan antes de mutar estado.
var (
	ErrInvalidProportions = errors.New("las proporciones exenta/5%/10% deben sumar 100")
	ErrInvalidRange       = errors.New("rango de numeración inválido")
	ErrDuplicateRange     = errors.New("el rango se superpone con números existentes")
)

// ErrTransient marca fallas de colaboradores externos (firma, transporte) que admiten reintento.
// Los adaptadores lo envuelven: fmt.Errorf("%w: ...", domain.ErrTransient).
var ErrTransient = errors.New("falla transitoria de servicio externo")

// Kind clasifica un error para el llamador.
type Kind string

const (
	KindRetryLater Kind = "retry_later" // agotamiento o falla transitoria
	KindFixRequest Kind = "fix_request" // la petición debe corregirse
	KindConflict   Kind = "conflict"    // el estado del documento no admite la operación
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Classify devuelve la categoría del error según la taxonomía de errores del emisor.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPoolExhausted), errors.Is(err, ErrInsufficientNumbers),
		errors.Is(err, ErrTransient), errors.Is(err, ErrSecurityCodeExhausted):
		return KindRetryLater
	case errors.Is(err, ErrInvalidProportions), errors.Is(err, ErrInvalidRange),
		errors.Is(err, ErrExceedsOriginBalance), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrOriginNotSigned), errors.Is(err, ErrAuthorizationInvalid),
		errors.Is(err, ErrForbidden):
		return KindFixRequest
	case errors.Is(err, ErrDocumentLocked), errors.Is(err, ErrAlreadyReserved),
		errors.Is(err, ErrNotReserved), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDuplicateRange), errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// IsRetryable indica si conviene reintentar más tarde sin cambiar la petición.
func IsRetryable(err error) bool {
	return Classify(err) == KindRetryLater
}
