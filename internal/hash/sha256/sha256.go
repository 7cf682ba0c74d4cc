// Package sha256 fingerprints rendered results for HTTP caching.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ETag returns a strong entity tag for data.
func (h *Hasher) ETag(data []byte) string {
	digest, _ := h.Hash(data) //nolint:errcheck // Hash never fails
	return `"` + digest[:32] + `"`
}
