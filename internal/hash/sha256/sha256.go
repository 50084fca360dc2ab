// Package sha256 pseudonymizes identifiers with a salted SHA-256 digest.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher digests values prefixed with a fixed salt.
type Hasher struct {
	salt []byte
}

// New returns a hasher using salt. An empty salt yields plain SHA-256.
func New(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	d := sha256.New()
	d.Write(h.salt)
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil)), nil
}
