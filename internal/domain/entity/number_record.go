package entity

import "time"

// Estados de un número fiscal.
const (
	NumberStateFree     = "FREE"
	NumberStateReserved = "RESERVED"
)

// MaxSequenceNumber es el mayor número de documento admitido por SIFEN (7 dígitos).
const MaxSequenceNumber int64 = 9999999

// NumberRecord es una unidad reservable del talonario electrónico.
// Unicidad: (EstablishmentID, DocType, Series, SequenceNumber). Nunca se borra (auditoría).
type NumberRecord struct {
	ID              string
	AuthorizationID string
	EstablishmentID string
	DocType         DocumentType
	Series          string
	SequenceNumber  int64
	State           string
	DocumentID      string // vacío mientras está FREE
	ReservedAt      *time.Time
	ReleasedAt      *time.Time
	CreatedAt       time.Time
}

// IsFree indica si el número puede asignarse.
func (r *NumberRecord) IsFree() bool { return r.State == NumberStateFree }
