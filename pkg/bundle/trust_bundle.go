// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package bundle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	set "github.com/deckarep/golang-set"
)

// SourceCertificates pairs a source id with the certificates it contributed this
// pass. Merge consumes these in reading order (hub first, then managed clusters in
// inventory order) so the serialized bundle is deterministic.
type SourceCertificates struct {
	SourceID string
	Certs    []CertificatePEM
}

// TrustBundle is an ordered set of unique certificates plus a content fingerprint.
// The fingerprint is computed over the sorted DER digests, so two bundles built
// from the same certificates in different orders compare equal. A bundle is
// immutable once built; a changed certificate set produces a new bundle.
type TrustBundle struct {
	certs       []CertificatePEM
	fingerprint string
}

// Merge flattens the per-source certificates into one deduplicated bundle,
// preserving first-seen order. Sources that failed to read are simply absent from
// the input; they reduce completeness but never abort the merge.
func Merge(perSource []SourceCertificates) *TrustBundle {
	seen := set.NewSet()
	merged := []CertificatePEM{}
	for _, src := range perSource {
		for _, cert := range src.Certs {
			if seen.Add(cert.Digest()) {
				merged = append(merged, cert)
			}
		}
	}
	return &TrustBundle{
		certs:       merged,
		fingerprint: fingerprintOf(merged),
	}
}

func fingerprintOf(certs []CertificatePEM) string {
	digests := make([]string, 0, len(certs))
	for _, cert := range certs {
		digests = append(digests, cert.Digest())
	}
	sort.Strings(digests)

	hash := sha256.New()
	for _, digest := range digests {
		hash.Write([]byte(digest))
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// Fingerprint identifies the certificate set independent of extraction order.
func (b *TrustBundle) Fingerprint() string {
	return b.fingerprint
}

// Certificates returns the unique certificates in first-seen order.
func (b *TrustBundle) Certificates() []CertificatePEM {
	return b.certs
}

// Len is the number of unique certificates.
func (b *TrustBundle) Len() int {
	return len(b.certs)
}

// Encode serializes the bundle as concatenated PEM blocks, the format consumed by
// proxies as an opaque trust anchor.
func (b *TrustBundle) Encode() []byte {
	var buf bytes.Buffer
	for _, cert := range b.certs {
		buf.Write(cert.Encode())
	}
	return buf.Bytes()
}
