// Package checksum fingerprints snapshot payloads with SHA-256. The pipeline
// signs each batch it pushes and the events API rejects a batch whose body
// does not match.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Header carries the hex SHA-256 of a request body.
const Header = "X-Content-SHA256"

// SHA256 returns the lowercase hex SHA256 of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether data hashes to expected. Hex case is ignored.
func Verify(data []byte, expected string) bool {
	return strings.EqualFold(SHA256(data), strings.TrimSpace(expected))
}
