package hostcert_test

import (
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/hostcert-tools/hostcert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRGeneratorProducesStructuredRequest(t *testing.T) {
	gen := &hostcert.CSRGenerator{
		Organization: "Example Org",
		KeyType:      certcrypto.EC256, // fast key type for tests
	}

	sans := []string{"node1.example.org", "alt1.example.org", "alt1.example.org"}
	keyPEM, csrPEM, err := gen.Generate("node1.example.org", sans)
	require.NoError(t, err)

	_, err = certcrypto.ParsePEMPrivateKey(keyPEM)
	require.NoError(t, err)

	block, _ := pem.Decode(csrPEM)
	require.NotNil(t, block)
	require.Equal(t, "CERTIFICATE REQUEST", block.Type)

	csr, err := x509.ParseCertificateRequest(block.Bytes)
	require.NoError(t, err)
	require.NoError(t, csr.CheckSignature())

	assert.Equal(t, "node1.example.org", csr.Subject.CommonName)
	assert.Equal(t, []string{"Example Org"}, csr.Subject.Organization)
	// SAN entries go in as typed values, order and duplicates preserved.
	assert.Equal(t, sans, csr.DNSNames)
}

func TestPEMCertVerifier(t *testing.T) {
	verifier := hostcert.PEMCertVerifier{}

	cert, err := verifier.Parse(testCertPEM(t))
	require.NoError(t, err)
	assert.Equal(t, "node1.example.org", cert.Subject.CommonName)

	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty body", body: []byte{}},
		{name: "html error page", body: []byte("<html>certificate not found</html>")},
		{name: "truncated pem", body: []byte("-----BEGIN CERTIFICATE-----\nabc\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Parse(tt.body)
			assert.ErrorIs(t, err, hostcert.ErrInvalidCertificate)
		})
	}
}
