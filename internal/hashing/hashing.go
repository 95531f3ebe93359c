// Package hashing implements the deterministic hash functions that drive
// bucketing decisions. Every gatewise SDK, in every language, must produce
// byte-identical output for the same input string: percentage rollouts and
// experiment group assignment depend on it.
package hashing

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strconv"
)

// BucketHash computes the SHA-256 digest of the UTF-8 bytes of input and
// interprets the first 8 bytes as a big-endian unsigned 64-bit integer.
// This is the cross-language bucketing primitive.
func BucketHash(input string) uint64 {
	sum := sha256.Sum256([]byte(input))
	return binary.BigEndian.Uint64(sum[:8])
}

// DJB2 computes a 32-bit djb2-variant hash of input and returns it as the
// decimal string of the unsigned value. Used only to obfuscate spec and
// parameter names for hashed disclosure modes, never for bucketing.
func DJB2(input string) string {
	var hash int32
	for _, r := range input {
		hash = (hash << 5) - hash + int32(r)
	}
	return strconv.FormatUint(uint64(uint32(hash)), 10)
}

// SHA256Base64 returns the standard base64 encoding of the full SHA-256
// digest of input. Segment list membership checks use the first 8 characters
// of this encoding.
func SHA256Base64(input string) string {
	sum := sha256.Sum256([]byte(input))
	return base64.StdEncoding.EncodeToString(sum[:])
}
