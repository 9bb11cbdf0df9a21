package entity

import "time"

// FiscalAuthorization representa el timbrado otorgado por la SET a un contribuyente (RUC)
// para emitir documentos electrónicos entre ValidFrom y ValidTo.
// CSC1/CSC2 son los códigos de seguridad del contribuyente usados en el QR del KuDE.
type FiscalAuthorization struct {
	ID            string
	RUC           string // RUC sin dígito verificador (ej: "80012345")
	RUCCheckDigit string // DV del RUC
	TaxpayerType  int    // 1 = persona física, 2 = persona jurídica
	BusinessName  string // Razón social del emisor
	Number        string // Número de timbrado (8 dígitos)
	ValidFrom     time.Time
	ValidTo       time.Time
	CSCID         string // Identificador del CSC vigente (ej: "0001")
	CSC1          string
	CSC2          string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsValidOn indica si el timbrado está activo y vigente en la fecha dada (solo se compara el día).
func (a *FiscalAuthorization) IsValidOn(t time.Time) bool {
	if a == nil || !a.IsActive {
		return false
	}
	day := truncateDay(t)
	return !day.Before(truncateDay(a.ValidFrom)) && !day.After(truncateDay(a.ValidTo))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
