// Enlace QR del KuDE (dCarQR): parámetros de consulta más cHashQR = SHA-256(parámetros + CSC).

package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// QRParams datos del enlace de consulta del KuDE.
type QRParams struct {
	Version       string // nVersion
	ControlCode   string // Id (CDC)
	IssueDate     string // dFeEmiDE tal como figura en el XML (AAAA-MM-DDThh:mm:ss)
	ReceiverRUC   string // dRucRec; vacío si el receptor no es contribuyente
	ReceiverDocID string // dNumIDRec cuando no hay RUC
	Total         string // dTotGralOpe
	TotalVAT      string // dTotIVA
	Items         int    // cItems
	DigestValue   string // DigestValue de la firma (Base64)
	CSCID         string // IdCSC
}

// BuildQRLink arma la URL de consulta. base es el prefijo del ambiente (termina en "?").
func BuildQRLink(base string, p QRParams, csc string) (string, error) {
	if p.ControlCode == "" || p.DigestValue == "" {
		return "", fmt.Errorf("sifen: QR requiere CDC y DigestValue")
	}
	if csc == "" || p.CSCID == "" {
		return "", fmt.Errorf("sifen: QR requiere CSC configurado en el timbrado")
	}
	receiver := "dRucRec=" + p.ReceiverRUC
	if p.ReceiverRUC == "" {
		id := p.ReceiverDocID
		if id == "" {
			id = "0"
		}
		receiver = "dNumIDRec=" + id
	}
	params := strings.Join([]string{
		"nVersion=" + p.Version,
		"Id=" + p.ControlCode,
		"dFeEmiDE=" + hex.EncodeToString([]byte(p.IssueDate)),
		receiver,
		"dTotGralOpe=" + p.Total,
		"dTotIVA=" + p.TotalVAT,
		"cItems=" + fmt.Sprint(p.Items),
		"DigestValue=" + hex.EncodeToString([]byte(p.DigestValue)),
		"IdCSC=" + p.CSCID,
	}, "&")
	hash := sha256.Sum256([]byte(params + csc))
	return base + params + "&cHashQR=" + hex.EncodeToString(hash[:]), nil
}
