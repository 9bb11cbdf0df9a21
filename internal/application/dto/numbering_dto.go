package dto

// GenerateRangeRequest body para POST /api/numbering/ranges.
type GenerateRangeRequest struct {
	AuthorizationID string `json:"authorization_id"`
	EstablishmentID string `json:"establishment_id"`
	DocType         int    `json:"doc_type"`
	Series          string `json:"series,omitempty"`
	Start           int64  `json:"start"`
	End             int64  `json:"end"`
}

// GenerateRangeResponse cantidad de números insertados como libres.
type GenerateRangeResponse struct {
	Created int `json:"created"`
}

// BatchResultRequest resultado de un documento informado por la SET.
type BatchResultRequest struct {
	CDC      string `json:"cdc"`
	Approved bool   `json:"approved"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// BatchResultsRequest body para POST /api/batches/:id/results.
type BatchResultsRequest struct {
	Results []BatchResultRequest `json:"results"`
}
