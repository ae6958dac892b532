package util

import (
	"github.com/OneOfOne/xxhash"
)

// HashCode returns the 64 bit xxhash of data. Used for header checksums,
// cache entry integrity and the wire protocol payload digest.
func HashCode(data []byte) uint64 {
	h := xxhash.New64()
	h.Write(data)
	return h.Sum64()
}
