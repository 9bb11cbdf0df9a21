package sifen_test

import (
	"context"
	"crypto/tls"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/sifen"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/sifen/signer"
)

func TestDocumentSigner_FirmaYQR(t *testing.T) {
	s := sifen.NewDocumentSigner(selfSignedCert(t), "test", zerolog.Nop())
	art, err := s.Sign(context.Background(), samplePayload())
	require.NoError(t, err)

	doc := parse(t, art.XML)
	children := doc.Root().ChildElements()
	require.Len(t, children, 4)
	assert.Equal(t, []string{"dVerFor", "DE", "Signature", "gCamFuFD"},
		[]string{children[0].Tag, children[1].Tag, children[2].Tag, children[3].Tag})

	assert.Equal(t, art.QRLink, text(doc, "//gCamFuFD/dCarQR"))
	assert.True(t, strings.HasPrefix(art.QRLink, "https://ekuatia.set.gov.py/consultas-test/qr?nVersion=150&Id="+testCDC))
	assert.Contains(t, art.QRLink, "IdCSC=0001")
	assert.Contains(t, art.QRLink, "cItems=1")

	digest, err := signer.DigestOf(art.XML)
	require.NoError(t, err)
	assert.Equal(t, art.Ref, digest, "Ref es el DigestValue del DE")
}

func TestDocumentSigner_SinCertificado(t *testing.T) {
	s := sifen.NewDocumentSigner(tls.Certificate{}, "test", zerolog.Nop())
	_, err := s.Sign(context.Background(), samplePayload())
	assert.Error(t, err)
}

func TestDocumentSigner_SinCSC(t *testing.T) {
	s := sifen.NewDocumentSigner(selfSignedCert(t), "prod", zerolog.Nop())
	p := samplePayload()
	p.Authorization.CSC1 = ""
	_, err := s.Sign(context.Background(), p)
	assert.ErrorContains(t, err, "CSC")
}
