package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBody     = "mirdump/body/v1"
	DomainPlaceSet = "mirdump/placeset/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// BodyHash computes the content-addressed identity of a body.
// Two bodies with the same locals, types and blocks hash equal regardless
// of map iteration order.
func BodyHash(body Body) (string, error) {
	canonical, err := MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("BodyHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBody, canonical), nil
}

// PlaceSetDigest hashes a set of places independent of input order.
// Duplicates collapse: the digest is over the distinct place keys.
func PlaceSetDigest(places []Place) (string, error) {
	keys := make([]string, 0, len(places))
	for _, p := range places {
		keys = append(keys, p.Key())
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	canonical, err := MarshalCanonical(keys)
	if err != nil {
		return "", fmt.Errorf("PlaceSetDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlaceSet, canonical), nil
}
