package entity

import "time"

// Establishment es una sucursal física bajo un timbrado, identificada por un código de 3 dígitos.
// ExpeditionCodes lista los puntos de expedición habilitados (ej: "001", "002").
type Establishment struct {
	ID              string
	AuthorizationID string
	Code            string
	Name            string
	Address         string
	ExpeditionCodes []string
	CreatedAt       time.Time
}

// AllowsExpedition indica si el punto de expedición pertenece al establecimiento.
func (e *Establishment) AllowsExpedition(code string) bool {
	for _, c := range e.ExpeditionCodes {
		if c == code {
			return true
		}
	}
	return false
}
