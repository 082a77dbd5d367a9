package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// GenerateHash creates a stable identifier from a chunk's text and its
// ordinal within the source document. The same chunk always hashes to the
// same ID, which keeps entry IDs reproducible across rebuilds.
func GenerateHash(text string, ordinal int64) string {
	hasher := sha256.New()
	hasher.Write([]byte(text))
	hasher.Write([]byte(strconv.FormatInt(ordinal, 10)))
	return hex.EncodeToString(hasher.Sum(nil))[:16] // Use first 16 chars of the hash
}
