package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord prefixes every record hash. The version suffix leaves room
// for a future change of canonical form.
const DomainRecord = "fitmerge/record/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content identity of a record. Records with equal
// field/value pairs hash equally regardless of field order.
func Hash(r Record) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("record hash: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when the record is known to be finite.
func MustHash(r Record) string {
	h, err := Hash(r)
	if err != nil {
		panic(err)
	}
	return h
}
