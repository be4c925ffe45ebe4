package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// HashFunc maps a serialized key to its bucket hash. The table takes the
// function as a constructor argument; both implementations below qualify.
type HashFunc func(key []byte) uint32

// KeyComparator is a total order over keys. Returns 0 on equality.
type KeyComparator func(a uint32, b uint32) int

// UInt32Comparator is the stock comparator for uint32 keys
func UInt32Comparator(a uint32, b uint32) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func GenHashMurMur(key []byte) uint32 {
	h := murmur3.New128()
	h.Write(key)

	hash := h.Sum(nil)

	return binary.LittleEndian.Uint32(hash)
}

func GenHashXX(key []byte) uint32 {
	return uint32(xxhash.Sum64(key))
}
