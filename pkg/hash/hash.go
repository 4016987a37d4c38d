package hash

import "github.com/cespare/xxhash/v2"

// Fingerprint computes the one-byte, fast first-level filter a leaf slot
// stores alongside its key to short-circuit full key comparisons during an
// intra-leaf scan (spec: "hash fingerprint byte per slot"). It is the high
// byte of a stable 64-bit hash rather than a process-seeded one, since the
// fingerprint is persisted with the slot and must compare equal across
// process restarts for the same key.
func Fingerprint(key []byte) uint8 {
	return uint8(xxhash.Sum64(key) >> 56)
}

// FingerprintString is Fingerprint for a string key, avoiding a copy.
func FingerprintString(key string) uint8 {
	return uint8(xxhash.Sum64String(key) >> 56)
}
