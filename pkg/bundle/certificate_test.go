package bundle

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// selfSignedPEM generates a throwaway CA certificate for tests.
func selfSignedPEM(t *testing.T, cn string) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestParseCertificates(t *testing.T) {
	certA := selfSignedPEM(t, "cert-a")
	certB := selfSignedPEM(t, "cert-b")

	tests := []struct {
		name        string
		raw         []byte
		wantCerts   int
		wantDropped int
		wantErr     error
	}{
		{
			name:      "single certificate",
			raw:       certA,
			wantCerts: 1,
		},
		{
			name:      "concatenated certificates",
			raw:       append(append([]byte{}, certA...), certB...),
			wantCerts: 2,
		},
		{
			name:      "surrounding whitespace is ignored",
			raw:       append(append([]byte("\n\n  "), certA...), []byte("\n\t\n")...),
			wantCerts: 1,
		},
		{
			name:        "non-certificate block is dropped",
			raw:         append(append([]byte{}, certA...), pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: []byte("key")})...),
			wantCerts:   1,
			wantDropped: 1,
		},
		{
			name:        "trailing garbage is dropped",
			raw:         append(append([]byte{}, certB...), []byte("-----BEGIN CERTIFICATE-----\nnot base64!!\n")...),
			wantCerts:   1,
			wantDropped: 1,
		},
		{
			name:    "entirely unparseable payload",
			raw:     []byte("this is not pem at all"),
			wantErr: ErrNoCertificates,
		},
		{
			name:      "empty payload yields nothing",
			raw:       []byte("  \n"),
			wantCerts: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certs, dropped, err := ParseCertificates(tt.raw)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got err %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, certs, tt.wantCerts)
			assert.Equal(t, tt.wantDropped, dropped)
		})
	}
}

func TestCertificateEquality(t *testing.T) {
	raw := selfSignedPEM(t, "cert-a")
	parsed, _, err := ParseCertificates(raw)
	assert.NoError(t, err)
	assert.Len(t, parsed, 1)

	// re-wrap the same DER with different line width: still the same certificate
	block, _ := pem.Decode(raw)
	rewrapped := pem.EncodeToMemory(&pem.Block{
		Type:    "CERTIFICATE",
		Headers: map[string]string{"Comment": "rewrapped"},
		Bytes:   block.Bytes,
	})
	reparsed, _, err := ParseCertificates(rewrapped)
	assert.NoError(t, err)
	assert.Len(t, reparsed, 1)

	assert.True(t, parsed[0].Equal(reparsed[0]))
	assert.Equal(t, parsed[0].Digest(), reparsed[0].Digest())
}
