package sifen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

func TestCheckDigit_RUC(t *testing.T) {
	cases := map[string]int{
		"80000000": 5,
		"80012345": 0,
		"4512309":  8,
	}
	for ruc, want := range cases {
		assert.Equal(t, want, sifen.CheckDigit(ruc), "DV de %s", ruc)
	}
}

func TestValidateRUC(t *testing.T) {
	assert.NoError(t, sifen.ValidateRUC("80012345", "0"))
	assert.Error(t, sifen.ValidateRUC("80012345", "1"))
	assert.Error(t, sifen.ValidateRUC("", "0"))
	assert.Error(t, sifen.ValidateRUC("123456789", "0"), "más de 8 caracteres")
}

func TestSplitRUC(t *testing.T) {
	n, dv := sifen.SplitRUC(" 80012345-0 ")
	assert.Equal(t, "80012345", n)
	assert.Equal(t, "0", dv)

	n, dv = sifen.SplitRUC("4512309")
	assert.Equal(t, "4512309", n)
	assert.Empty(t, dv)
}
