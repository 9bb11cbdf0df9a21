// Carga del certificado del contribuyente desde .p12 (PKCS#12) o par PEM.

package signer

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// El password puede ser vacío si el archivo no está protegido.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	// pkcs12.Decode devuelve un solo certificado; la SET acepta el certificado hoja.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// LoadFromPEM carga certificado y llave desde archivos PEM (por separado o combinados).
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}
	return cert, nil
}

// Load elige el formato por extensión: .p12/.pfx usan password, el resto se trata como PEM.
// Con certPath vacío devuelve un certificado vacío y err nil (modo sin firma).
func Load(certPath, keyPath, password string) (tls.Certificate, error) {
	if certPath == "" {
		return tls.Certificate{}, nil
	}
	switch strings.ToLower(filepath.Ext(certPath)) {
	case ".p12", ".pfx":
		return LoadFromP12(certPath, password)
	}
	return LoadFromPEM(certPath, keyPath)
}

// IsEmpty indica si no se cargó ningún certificado.
func IsEmpty(cert tls.Certificate) bool {
	return len(cert.Certificate) == 0 || cert.PrivateKey == nil
}

// CertDigest devuelve el SHA-256 del certificado en Base64.
func CertDigest(cert *x509.Certificate) string {
	h := sha256.Sum256(cert.Raw)
	return base64.StdEncoding.EncodeToString(h[:])
}
