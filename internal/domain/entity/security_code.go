package entity

import "time"

// SecurityCodeRecord es el código de seguridad de 9 dígitos acuñado al firmar un documento.
// Es único en todo el sistema y nunca se reutiliza.
type SecurityCodeRecord struct {
	Code       string
	DocumentID string
	CreatedAt  time.Time
}
