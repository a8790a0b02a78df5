package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for structural signatures.
// The version suffix leaves room for changing the encoding later.
const (
	DomainOccurrence  = "mappa/occurrence/v1"
	DomainName        = "mappa/name/v1"
	DomainVariant     = "mappa/variant/v1"
	DomainAssociation = "mappa/association/v1"
	DomainRole        = "mappa/role/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Signature computes the structural signature of obj under domain.
// Two constructs with equal signatures are duplicates for merging.
func Signature(domain string, obj IRObject) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("signature %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustSignature is like Signature but panics on error.
// Use only in tests or when the object is known to be valid.
func MustSignature(domain string, obj IRObject) string {
	sig, err := Signature(domain, obj)
	if err != nil {
		panic(err)
	}
	return sig
}
