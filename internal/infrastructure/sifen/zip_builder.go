package sifen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
)

// lotFilename nombre del XML dentro del ZIP enviado a siRecepLoteDE.
const lotFilename = "lote.xml"

// BuildLotXML arma <rLoteDE> con los rDE firmados, sin la declaración XML de cada uno.
func BuildLotXML(items []billing.BatchItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("sifen: lote vacío")
	}
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString(`<rLoteDE>`)
	for _, it := range items {
		body := strings.TrimSpace(stripXMLDeclaration(string(it.SignedXML)))
		if body == "" {
			return nil, fmt.Errorf("sifen: documento %s sin XML firmado", it.ControlCode)
		}
		buf.WriteString(body)
	}
	buf.WriteString(`</rLoteDE>`)
	return buf.Bytes(), nil
}

// CompressLot devuelve el ZIP del lote listo para codificar en Base64.
func CompressLot(items []billing.BatchItem) ([]byte, error) {
	lot, err := BuildLotXML(items)
	if err != nil {
		return nil, err
	}
	return CompressXMLToZip(lot, lotFilename)
}

// CompressXMLToZip comprime un XML en un ZIP con un único archivo.
func CompressXMLToZip(xmlBytes []byte, filename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada: %w", err)
	}
	if _, err := w.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar: %w", err)
	}
	return buf.Bytes(), nil
}

func stripXMLDeclaration(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<?xml") {
		if i := strings.Index(s, "?>"); i >= 0 {
			return s[i+2:]
		}
	}
	return s
}
