// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package bundle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
)

// ErrNoCertificates is returned when a non-empty payload yields no usable
// CERTIFICATE block at all.
var ErrNoCertificates = errors.New("no certificate block found in payload")

const certificateBlockType = "CERTIFICATE"

// CertificatePEM is one CA certificate extracted from a PEM payload. It holds the
// decoded DER bytes so that equality is independent of the line wrapping and
// surrounding whitespace of the original text. A CertificatePEM is never mutated
// after extraction.
type CertificatePEM struct {
	der []byte
}

// DER returns a copy of the decoded certificate bytes.
func (c CertificatePEM) DER() []byte {
	return bytes.Clone(c.der)
}

// Digest returns the hex-encoded SHA-256 of the DER payload. Two certificates are
// the same certificate iff their digests are equal.
func (c CertificatePEM) Digest() string {
	sum := sha256.Sum256(c.der)
	return hex.EncodeToString(sum[:])
}

// Equal reports byte-for-byte equality of the decoded blocks.
func (c CertificatePEM) Equal(other CertificatePEM) bool {
	return bytes.Equal(c.der, other.der)
}

// Encode renders the certificate as a canonical PEM block.
func (c CertificatePEM) Encode() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: certificateBlockType, Bytes: c.der})
}

// ParseCertificates extracts all CERTIFICATE blocks from raw PEM text. Blocks of
// other types and undecodable trailing material are dropped; the dropped count is
// returned so the caller can log it. ErrNoCertificates is returned only when the
// entire payload produced nothing usable.
func ParseCertificates(raw []byte) ([]CertificatePEM, int, error) {
	var certs []CertificatePEM
	dropped := 0

	rest := raw
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != certificateBlockType || len(block.Bytes) == 0 {
			dropped++
			continue
		}
		certs = append(certs, CertificatePEM{der: bytes.Clone(block.Bytes)})
	}

	// leftover non-whitespace means a block pem.Decode could not frame
	if len(bytes.TrimSpace(rest)) > 0 {
		dropped++
	}

	if len(certs) == 0 && len(bytes.TrimSpace(raw)) > 0 {
		return nil, dropped, ErrNoCertificates
	}
	return certs, dropped, nil
}
