// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package page

import "github.com/masu-db/MasuDB/common"

type HashTablePair struct {
	key   uint32
	value uint32
}

const sizeOfHashTablePair = 8

// One occupied bit plus one readable bit per slot rides along with each
// pair, hence the 1/4 byte per slot in the divisor.
const BlockArraySize = 4 * common.PageSize / (4*sizeOfHashTablePair + 1)

/**
 * Store indexed key and value together within block page. Supports
 * non-unique keys.
 *
 * Block page format (keys are stored in order):
 *  ----------------------------------------------------------------
 * | KEY(1) + VALUE(1) | KEY(2) + VALUE(2) | ... | KEY(n) + VALUE(n)
 *  ----------------------------------------------------------------
 *
 *  Here '+' means concatenation.
 *
 */
type HashTableBlockPage struct {
	occupied [(BlockArraySize-1)/8 + 1]byte
	readable [(BlockArraySize-1)/8 + 1]byte
	array    [BlockArraySize]HashTablePair
}

// KeyAt gets the key at a slot in the block
func (page *HashTableBlockPage) KeyAt(index uint32) uint32 {
	return page.array[index].key
}

// ValueAt gets the value at a slot in the block
func (page *HashTableBlockPage) ValueAt(index uint32) uint32 {
	return page.array[index].value
}

// Insert attempts to store a pair at a slot. A slot that was ever used
// refuses the insert, tombstoned or not.
func (page *HashTableBlockPage) Insert(index uint32, key uint32, value uint32) bool {
	if page.IsOccupied(index) {
		return false
	}

	page.array[index] = HashTablePair{key, value}
	page.occupied[index/8] |= 1 << (index % 8)
	page.readable[index/8] |= 1 << (index % 8)
	return true
}

// Remove clears the readable bit of a slot. The occupied bit stays set so
// that probe sequences keep running past the tombstone.
func (page *HashTableBlockPage) Remove(index uint32) {
	if !page.IsReadable(index) {
		return
	}

	page.readable[index/8] &= ^(byte(1) << (index % 8))
}

// IsOccupied returns whether the slot was ever used
func (page *HashTableBlockPage) IsOccupied(index uint32) bool {
	return (page.occupied[index/8] & (1 << (index % 8))) != 0
}

// IsReadable returns whether the slot holds a live pair
func (page *HashTableBlockPage) IsReadable(index uint32) bool {
	return (page.readable[index/8] & (1 << (index % 8))) != 0
}
