package ir

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Domain prefixes for fingerprints. The version suffix allows the encoding
// to change without colliding with old values.
const (
	DomainSchema = "docbridge/schema/v1"
	DomainTable  = "docbridge/table/v1"
)

// fingerprintWithDomain hashes domain + 0x00 + data with 128-bit xxh3.
// The null separator prevents domain/data boundary ambiguity.
func fingerprintWithDomain(domain string, data []byte) string {
	h := xxh3.New()
	h.WriteString(domain)
	h.Write([]byte{0x00})
	h.Write(data)
	sum := h.Sum128().Bytes()
	return fmt.Sprintf("%x", sum[:])
}

// Fingerprint computes a stable fingerprint of v's canonical JSON encoding.
// Two values with equal canonical encodings always share a fingerprint.
func Fingerprint(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return fingerprintWithDomain(domain, canonical), nil
}
