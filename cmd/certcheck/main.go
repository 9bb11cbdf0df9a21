// certcheck diagnostica el certificado SIFEN configurado (SIFEN_CERT_PATH, SIFEN_CERT_KEY_PATH,
// SIFEN_CERT_PASSWORD): lo carga, muestra titular y vigencia, y firma un rDE de prueba.
//
// Uso: go run ./cmd/certcheck
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/sifen/signer"
	"github.com/jhoicas/facturacion-sifen/pkg/config"
)

const probeXML = `<rDE xmlns="http://ekuatia.set.gov.py/sifen/xsd"><dVerFor>150</dVerFor>` +
	`<DE Id="01800123450001001000000112026101811234567890"><dDVId>0</dDVId></DE></rDE>`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fail("configuración", err)
	}
	path := cfg.SIFEN.CertPath
	if path == "" {
		fail("configuración", fmt.Errorf("SIFEN_CERT_PATH vacío"))
	}

	fmt.Println("Diagnóstico de certificado SIFEN")
	fmt.Printf("  archivo: %s\n", path)

	if info, err := os.Stat(path); err != nil {
		fail("archivo", err)
	} else {
		fmt.Printf("  tamaño:  %d bytes\n", info.Size())
	}

	cert, err := signer.Load(path, cfg.SIFEN.CertKeyPath, cfg.SIFEN.CertPassword)
	if err != nil {
		fail("contraseña o formato", err)
	}
	leaf := cert.Leaf
	fmt.Printf("  titular: %s\n", leaf.Subject.String())
	fmt.Printf("  emisor:  %s\n", leaf.Issuer.String())
	fmt.Printf("  vigente: %s → %s\n", leaf.NotBefore.Format(time.DateOnly), leaf.NotAfter.Format(time.DateOnly))
	fmt.Printf("  sha256:  %s\n", signer.CertDigest(leaf))
	if now := time.Now(); now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		fmt.Println("  ADVERTENCIA: el certificado no está vigente hoy")
	}

	res, err := signer.NewXMLDSigService().Sign([]byte(probeXML), cert)
	if err != nil {
		fail("firma de prueba", err)
	}
	fmt.Printf("  firma de prueba OK (DigestValue %s)\n", res.DigestValue)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "ERROR (%s): %v\n", step, err)
	os.Exit(1)
}
