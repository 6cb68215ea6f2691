package hash

import "github.com/cespare/xxhash/v2"

// Key hashes a record key for bucket selection.
func Key(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// KeyString is Key for string keys.
func KeyString(key string) uint64 {
	return xxhash.Sum64String(key)
}
