package storage

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// PathHash returns the stable 32-bit hash of an absolute book path used
// by the library index and cache directory names. Derived from the first
// four bytes of a BLAKE3 digest; little-endian to match the on-SD formats.
func PathHash(path string) uint32 {
	sum := blake3.Sum256([]byte(path))
	return binary.LittleEndian.Uint32(sum[:4])
}

// Hash32 hashes an arbitrary byte string to 32 bits with the same
// construction as PathHash. Used for render-config fingerprints and
// cached image names.
func Hash32(data []byte) uint32 {
	sum := blake3.Sum256(data)
	return binary.LittleEndian.Uint32(sum[:4])
}
