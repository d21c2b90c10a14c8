package utils

import (
	"crypto/sha256"
	"fmt"
)

func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:16])
}

// URLToSeed derives a stable gradient seed from an article URL, so the same
// article always renders the same procedural thumbnail.
func URLToSeed(url string) int64 {
	var hash int32
	for _, r := range url {
		hash = hash<<5 - hash + int32(r)
	}
	if hash < 0 {
		hash = -hash
	}
	return int64(hash)
}
