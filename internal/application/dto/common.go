package dto

// ErrorResponse cuerpo de error HTTP. Retryable indica que la misma petición puede
// repetirse más tarde sin cambios (talonario agotado, SET caída). DocumentID viene cuando
// el documento quedó creado y numerado pero sin firmar: se reintenta con POST /sign.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	DocumentID string `json:"document_id,omitempty"`
}

// ReasonRequest body de anulaciones.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// CountResponse respuesta de operaciones masivas.
type CountResponse struct {
	Count int `json:"count"`
}
