package consensus

import "encoding/binary"

// appendU64LE appends the little-endian 8-byte encoding of v to dst, the
// LE8 rule used throughout the hash pre-images in §6.
func appendU64LE(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// appendU128LE appends the little-endian 16-byte encoding of v to dst, the
// LE16 rule used for the difficulty field. Difficulty is carried as a
// uint64 in this implementation (§9 permits but does not require
// arbitrary precision), so the upper 8 bytes are always zero.
func appendU128LE(dst []byte, v uint64) []byte {
	dst = appendU64LE(dst, v)
	var hi [8]byte
	return append(dst, hi[:]...)
}

// addUint64 adds two uint64s, returning ok=false on overflow instead of
// wrapping.
func addUint64(a, b uint64) (sum uint64, ok bool) {
	sum = a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// subUint64 subtracts b from a, returning ok=false if the result would be
// negative.
func subUint64(a, b uint64) (diff uint64, ok bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}