package signer_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/sifen/signer"
)

const sampleRDE = `<?xml version="1.0" encoding="UTF-8"?>
<rDE xmlns="http://ekuatia.set.gov.py/sifen/xsd"><dVerFor>150</dVerFor><DE Id="01800123450001001000000122026030210000000017"><dDVId>7</dDVId><gTotSub><dTotGralOpe>10000</dTotGralOpe></gTotSub></DE></rDE>`

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "EMPRESA DE PRUEBA S.A.", SerialNumber: "RUC80012345-0"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
}

func TestSign_InsertaFirmaTrasDE(t *testing.T) {
	cert := selfSignedCert(t)
	res, err := signer.NewXMLDSigService().Sign([]byte(sampleRDE), cert)
	require.NoError(t, err)
	require.NotEmpty(t, res.DigestValue)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(res.XML))
	children := doc.Root().ChildElements()
	require.Len(t, children, 3)
	assert.Equal(t, "DE", children[1].Tag)
	assert.Equal(t, "Signature", children[2].Tag)

	ref := doc.FindElement("//Signature/SignedInfo/Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#01800123450001001000000122026030210000000017", ref.SelectAttrValue("URI", ""))
	assert.Equal(t, res.DigestValue, doc.FindElement("//Reference/DigestValue").Text())

	// El digest del DE no cambia al agregar la firma como hermano.
	again, err := signer.DigestOf(res.XML)
	require.NoError(t, err)
	assert.Equal(t, res.DigestValue, again)
}

func TestSign_FirmaVerificable(t *testing.T) {
	cert := selfSignedCert(t)
	res, err := signer.NewXMLDSigService().Sign([]byte(sampleRDE), cert)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(res.XML))
	sigValue, err := base64.StdEncoding.DecodeString(doc.FindElement("//SignatureValue").Text())
	require.NoError(t, err)

	si := doc.FindElement("//Signature/SignedInfo").Copy()
	sub := etree.NewDocument()
	sub.SetRoot(si)
	raw, err := sub.WriteToBytes()
	require.NoError(t, err)
	canonical, err := signer.Canonicalize(raw)
	require.NoError(t, err)

	h := sha256.Sum256(canonical)
	pub := cert.Leaf.PublicKey.(*rsa.PublicKey)
	assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sigValue))
}

func TestSign_Errores(t *testing.T) {
	svc := signer.NewXMLDSigService()
	cert := selfSignedCert(t)

	_, err := svc.Sign(nil, cert)
	assert.Error(t, err)

	_, err = svc.Sign([]byte(sampleRDE), tls.Certificate{})
	assert.ErrorContains(t, err, "certificado")

	_, err = svc.Sign([]byte(`<rDE><DE><dDVId>1</dDVId></DE></rDE>`), cert)
	assert.ErrorContains(t, err, "Id")

	_, err = svc.Sign([]byte(`<Invoice/>`), cert)
	assert.Error(t, err)

	signed, err := svc.Sign([]byte(sampleRDE), cert)
	require.NoError(t, err)
	_, err = svc.Sign(signed.XML, cert)
	assert.ErrorContains(t, err, "ya está firmado")
}

func TestDigestOf_DetectaCambios(t *testing.T) {
	a, err := signer.DigestOf([]byte(sampleRDE))
	require.NoError(t, err)
	b, err := signer.DigestOf([]byte(strings.Replace(sampleRDE, "10000", "10050", 1)))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBuildQRLink(t *testing.T) {
	p := signer.QRParams{
		Version:     "150",
		ControlCode: "01800123450001001000000122026030210000000017",
		IssueDate:   "2026-03-02T10:00:00",
		ReceiverRUC: "80000000",
		Total:       "10000",
		TotalVAT:    "909",
		Items:       1,
		DigestValue: "abc=",
		CSCID:       "0001",
	}
	link, err := signer.BuildQRLink("https://ekuatia.set.gov.py/consultas-test/qr?", p, "ABCD0000000000000000000000000000")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(link, "https://ekuatia.set.gov.py/consultas-test/qr?nVersion=150&Id="))
	assert.Contains(t, link, "dFeEmiDE="+hex.EncodeToString([]byte("2026-03-02T10:00:00")))
	assert.Contains(t, link, "dRucRec=80000000")
	assert.Contains(t, link, "DigestValue="+hex.EncodeToString([]byte("abc=")))

	params := strings.TrimPrefix(link, "https://ekuatia.set.gov.py/consultas-test/qr?")
	idx := strings.Index(params, "&cHashQR=")
	require.Positive(t, idx)
	sum := sha256.Sum256([]byte(params[:idx] + "ABCD0000000000000000000000000000"))
	assert.Equal(t, hex.EncodeToString(sum[:]), params[idx+len("&cHashQR="):])

	// Receptor no contribuyente
	p.ReceiverRUC = ""
	p.ReceiverDocID = "1234567"
	link, err = signer.BuildQRLink("q?", p, "x")
	require.NoError(t, err)
	assert.Contains(t, link, "dNumIDRec=1234567")

	_, err = signer.BuildQRLink("q?", p, "")
	assert.Error(t, err)
}
