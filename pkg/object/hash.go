package object

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// HashLen is the length of a hex-encoded Hash.
const HashLen = 2 * sha256.Size

// HashBytes computes the SHA-256 of data and returns it as a lowercase
// hex-encoded Hash. Objects are addressed by the hash of their payload
// alone, so a Tree's identity is exactly the hash of its serialized blob.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// NewHasher returns a streaming hasher matching HashBytes.
func NewHasher() hash.Hash {
	return sha256.New()
}

// SumHash converts a finished hasher into a Hash.
func SumHash(h hash.Hash) Hash {
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// Valid reports whether h looks like a full hex-encoded hash.
func (h Hash) Valid() bool {
	if len(h) != HashLen {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Short returns an abbreviated form for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}
