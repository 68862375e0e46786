package hashutil

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

func Blake3Hash(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Blake3String hashes a string key, typically a cache locator.
func Blake3String(s string) string {
	return Blake3Hash([]byte(s))
}
