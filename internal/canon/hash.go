package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash domains. The version suffix allows migrating the encoding later.
const (
	DomainSignature = "jssat/signature/v1"
	DomainProgram   = "jssat/program/v1"
	DomainOutcome   = "jssat/outcome/v1"
)

// HashBytes computes SHA-256(domain + 0x00 + data) as lowercase hex.
// The separator keeps domain and data boundaries unambiguous.
func HashBytes(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonically marshals v and hashes it under domain.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashBytes(domain, data), nil
}

// MustHash is like Hash but panics on error.
// Use only when v is built from supported types by construction.
func MustHash(domain string, v any) string {
	h, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
