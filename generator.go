package hostcert

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"

	"github.com/go-acme/lego/v4/certcrypto"
)

// KeyAndCSRGenerator produces a private key and a signing request for one
// host. Implementations must build the request from structured fields; the
// SAN list is untrusted operator input and must never be spliced into
// request configuration as text.
type KeyAndCSRGenerator interface {
	Generate(hostname string, sans []string) (keyPEM, csrPEM []byte, err error)
}

// CertVerifier is the sole oracle for "is this a real, finalized
// certificate". The CA's retrieval endpoint answers 200 regardless of
// readiness, so only parsing the body tells.
type CertVerifier interface {
	Parse(data []byte) (*x509.Certificate, error)
}

// CSRGenerator generates RSA keys and PKCS#10 requests natively.
type CSRGenerator struct {
	Organization string
	KeyType      certcrypto.KeyType
}

func (g *CSRGenerator) Generate(hostname string, sans []string) ([]byte, []byte, error) {
	keyType := g.KeyType
	if keyType == "" {
		keyType = certcrypto.RSA4096
	}

	key, err := certcrypto.GeneratePrivateKey(keyType)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: generate private key for %q: %v", ErrGeneration, hostname, err)
	}

	template := &x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName:   hostname,
			Organization: []string{g.Organization},
		},
		DNSNames: sans,
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create signing request for %q: %v", ErrGeneration, hostname, err)
	}

	keyPEM := certcrypto.PEMEncode(key)
	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})
	return keyPEM, csrPEM, nil
}

// PEMCertVerifier parses a single PEM certificate.
type PEMCertVerifier struct{}

func (PEMCertVerifier) Parse(data []byte) (*x509.Certificate, error) {
	cert, err := certcrypto.ParsePEMCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	return cert, nil
}
