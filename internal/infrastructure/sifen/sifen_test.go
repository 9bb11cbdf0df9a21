package sifen_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
)

const testCDC = "01800123450001001000000122026030210000000017"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func samplePayload() billing.SignPayload {
	seq := int64(12)
	issue := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	doc := &entity.Document{
		ID:                 "doc-1",
		DocType:            entity.DocTypeInvoice,
		EstablishmentCode:  "001",
		ExpeditionCode:     "001",
		SequenceNumber:     &seq,
		IssueDate:          issue,
		Currency:           "PYG",
		Counterparty:       entity.Counterparty{Name: "Cliente\tde  Prueba", RUC: "80000000", RUCCheckDigit: "5"},
		Base10:             dec("9103.64"),
		VAT10:              dec("910.36"),
		RawTotal:           dec("10014"),
		RoundingAdjustment: dec("14"),
		Total:              dec("10000"),
		SecurityCode:       "000000001",
		ControlCode:        testCDC,
	}
	lines := []*entity.DocumentLine{{
		LineNo:      1,
		Code:        "P-1",
		Description: "Café molido",
		Quantity:    dec("1"),
		UnitPrice:   dec("10014"),
		Percent10:   dec("100"),
		Total:       dec("10014"),
		Base10:      dec("9103.64"),
		VAT10:       dec("910.36"),
	}}
	return billing.SignPayload{
		Document: doc,
		Lines:    lines,
		Authorization: &entity.FiscalAuthorization{
			RUC: "80012345", RUCCheckDigit: "0", TaxpayerType: 2,
			BusinessName: "Empresa S.A.", Number: "12345678",
			ValidFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			CSCID:     "0001", CSC1: "ABCD0000000000000000000000000000",
		},
		Establishment: &entity.Establishment{Code: "001", Address: "Av. Mcal. López 123"},
	}
}

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "EMPRESA S.A."},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
}
