package util

import (
	"crypto/sha1"
	"encoding/hex"
)

// Checksum returns the hex encoded sha1 digest of data. It only labels payloads in logs.
func Checksum(data []byte) string {
	hasher := sha1.New()
	hasher.Write(data)

	return hex.EncodeToString(hasher.Sum(nil))
}
