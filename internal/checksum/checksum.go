// Package checksum fingerprints stored document text.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Text returns the digest of s as it would be written to disk.
func Text(s string) string {
	return Sum([]byte(s))
}

// Matches reports whether s still has the fingerprint sum.
// An empty sum never matches.
func Matches(s, sum string) bool {
	return sum != "" && Text(s) == sum
}
