// Servicio de firma XMLDSig enveloped del DE.
// Firma el elemento <DE Id="CDC"> e inserta <Signature> como hermano siguiente dentro de <rDE>.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// Result resultado de la firma.
type Result struct {
	XML         []byte // rDE con Signature
	DigestValue string // DigestValue (Base64) de la Reference al DE
}

// XMLDSigService firma el rDE con RSA-SHA256. No tiene estado.
type XMLDSigService struct{}

// NewXMLDSigService crea el servicio.
func NewXMLDSigService() *XMLDSigService {
	return &XMLDSigService{}
}

// Sign canonicaliza el DE, calcula su digest, firma SignedInfo e inyecta la firma en el rDE.
func (s *XMLDSigService) Sign(xmlBytes []byte, cert tls.Certificate) (*Result, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("sifen: XML vacío")
	}
	if IsEmpty(cert) {
		return nil, fmt.Errorf("sifen: certificado no configurado")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("sifen: el certificado debe incluir llave privada RSA")
	}
	x509Cert := cert.Leaf
	if x509Cert == nil {
		var err error
		x509Cert, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("sifen: parsear certificado: %w", err)
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("sifen: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != ElementRoot {
		return nil, fmt.Errorf("sifen: se esperaba raíz <%s>", ElementRoot)
	}
	de := root.SelectElement(ElementSigned)
	if de == nil {
		return nil, fmt.Errorf("sifen: no se encontró <%s>", ElementSigned)
	}
	refID := de.SelectAttrValue("Id", "")
	if refID == "" {
		return nil, fmt.Errorf("sifen: <%s> sin atributo Id", ElementSigned)
	}
	if root.SelectElement(ElementSignature) != nil {
		return nil, fmt.Errorf("sifen: el documento ya está firmado")
	}

	// 1) Digest del DE canonicalizado. Reference URI="#<CDC>"
	canonicalDE, err := canonicalizeElement(de, root)
	if err != nil {
		return nil, fmt.Errorf("sifen: canonicalizar DE: %w", err)
	}
	digest := sha256.Sum256(canonicalDE)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	// 2) SignedInfo firmado con RSA-SHA256
	signedInfoXML := buildSignedInfo(refID, digestB64)
	canonicalSignedInfo, err := Canonicalize([]byte(signedInfoXML))
	if err != nil {
		return nil, fmt.Errorf("sifen: canonicalizar SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("sifen: firmar SignedInfo: %w", err)
	}

	// 3) Signature completo como hermano siguiente del DE
	signatureXML := buildSignature(signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(x509Cert.Raw))
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("sifen: parsear Signature: %w", err)
	}
	root.InsertChildAt(de.Index()+1, sigDoc.Root())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("sifen: serializar rDE firmado: %w", err)
	}
	return &Result{XML: out.Bytes(), DigestValue: digestB64}, nil
}

// DigestOf recalcula el digest del DE de un rDE (firmado o no). Se usa para verificar.
func DigestOf(xmlBytes []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return "", fmt.Errorf("sifen: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("sifen: documento sin raíz")
	}
	de := root.SelectElement(ElementSigned)
	if de == nil {
		return "", fmt.Errorf("sifen: no se encontró <%s>", ElementSigned)
	}
	canonicalDE, err := canonicalizeElement(de, root)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonicalDE)
	return base64.StdEncoding.EncodeToString(digest[:]), nil
}

// canonicalizeElement serializa el elemento como documento propio, con las declaraciones
// de namespace heredadas del padre (C14N inclusivo del subárbol).
func canonicalizeElement(el, parent *etree.Element) ([]byte, error) {
	cp := el.Copy()
	for _, a := range parent.Attr {
		if a.Space != "xmlns" && !(a.Space == "" && a.Key == "xmlns") {
			continue
		}
		if cp.SelectAttr(a.FullKey()) == nil {
			cp.CreateAttr(a.FullKey(), a.Value)
		}
	}
	sub := etree.NewDocument()
	sub.SetRoot(cp)
	raw, err := sub.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return Canonicalize(raw)
}

// Canonicalize aplica C14N inclusivo.
func Canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(refID, digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"></CanonicalizationMethod>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"></SignatureMethod>`)
	sb.WriteString(`<Reference URI="#` + refID + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"></Transform>`)
	sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"></Transform></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"></DigestMethod>`)
	sb.WriteString(`<DigestValue>` + digestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}
