package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainDocument = "joindb/document/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentDigest computes the content revision of a document body.
// Two bodies that are Equal after normalization share a digest, so the
// persistence layer can detect corrupted rows on load.
func DocumentDigest(body IRObject) (string, error) {
	canonical, err := MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("DocumentDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

// MustDocumentDigest is like DocumentDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDocumentDigest(body IRObject) string {
	d, err := DocumentDigest(body)
	if err != nil {
		panic(err)
	}
	return d
}
