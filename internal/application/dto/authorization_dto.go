package dto

import "time"

// CreateAuthorizationRequest body para POST /api/authorizations.
// RUC acepta "80012345-6" o número y DV por separado.
type CreateAuthorizationRequest struct {
	RUC           string `json:"ruc"`
	RUCCheckDigit string `json:"ruc_dv,omitempty"`
	TaxpayerType  int    `json:"taxpayer_type"`
	BusinessName  string `json:"business_name"`
	Number        string `json:"number"`
	ValidFrom     string `json:"valid_from"` // YYYY-MM-DD
	ValidTo       string `json:"valid_to"`
	CSCID         string `json:"csc_id,omitempty"`
	CSC1          string `json:"csc1,omitempty"`
	CSC2          string `json:"csc2,omitempty"`
}

// AuthorizationResponse timbrado en respuestas. Los CSC nunca se devuelven.
type AuthorizationResponse struct {
	ID           string    `json:"id"`
	RUC          string    `json:"ruc"`
	BusinessName string    `json:"business_name"`
	Number       string    `json:"number"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
	HasCSC       bool      `json:"has_csc"`
	IsActive     bool      `json:"is_active"`
}

// CreateEstablishmentRequest body para POST /api/authorizations/:id/establishments.
type CreateEstablishmentRequest struct {
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	Address         string   `json:"address,omitempty"`
	ExpeditionCodes []string `json:"expedition_codes"`
}

// EstablishmentResponse establecimiento en respuestas.
type EstablishmentResponse struct {
	ID              string   `json:"id"`
	AuthorizationID string   `json:"authorization_id"`
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	Address         string   `json:"address,omitempty"`
	ExpeditionCodes []string `json:"expedition_codes"`
}
