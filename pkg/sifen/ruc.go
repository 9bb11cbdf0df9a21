package sifen

import (
	"fmt"
	"strings"
)

// dvBaseMax peso máximo del módulo 11 de la SET; los pesos ciclan 2..11 desde la derecha.
const dvBaseMax = 11

// CheckDigit calcula el dígito verificador módulo 11 usado por la SET para el RUC y el CDC.
// Los caracteres no numéricos se reemplazan por su código ASCII (en mayúscula).
func CheckDigit(value string) int {
	var normalized strings.Builder
	for _, r := range strings.ToUpper(value) {
		if r >= '0' && r <= '9' {
			normalized.WriteRune(r)
			continue
		}
		fmt.Fprintf(&normalized, "%d", r)
	}
	digits := normalized.String()

	total, k := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		total += int(digits[i]-'0') * k
		k++
		if k > dvBaseMax {
			k = 2
		}
	}
	r := total % 11
	if r > 1 {
		return 11 - r
	}
	return 0
}

// SplitRUC separa "80012345-0" en número y DV. Sin guion devuelve DV vacío.
func SplitRUC(ruc string) (number, dv string) {
	ruc = strings.TrimSpace(ruc)
	if i := strings.LastIndex(ruc, "-"); i >= 0 {
		return ruc[:i], ruc[i+1:]
	}
	return ruc, ""
}

// ValidateRUC verifica que el DV informado corresponda al número de RUC.
func ValidateRUC(number, dv string) error {
	if number == "" {
		return fmt.Errorf("sifen: RUC vacío")
	}
	if len(number) > 8 {
		return fmt.Errorf("sifen: RUC excede 8 caracteres: %q", number)
	}
	want := fmt.Sprintf("%d", CheckDigit(number))
	if dv != want {
		return fmt.Errorf("sifen: DV del RUC %s inválido: esperado %s, recibido %q", number, want, dv)
	}
	return nil
}
