package page

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/masu-db/MasuDB/types"
)

func TestHashTableBlockPage(t *testing.T) {
	blockPage := new(HashTableBlockPage)

	for i := uint32(0); i < 10; i++ {
		assert.True(t, blockPage.Insert(i, i, i))
	}

	for i := uint32(0); i < 10; i++ {
		assert.Equal(t, i, blockPage.KeyAt(i))
		assert.Equal(t, i, blockPage.ValueAt(i))
	}

	// inserting into a used slot must refuse without touching the pair
	assert.False(t, blockPage.Insert(3, 100, 100))
	assert.Equal(t, uint32(3), blockPage.KeyAt(3))

	for i := uint32(0); i < 10; i++ {
		if i%2 == 1 {
			blockPage.Remove(i)
		}
	}

	for i := uint32(0); i < 15; i++ {
		if i < 10 {
			assert.True(t, blockPage.IsOccupied(i), "slot should stay occupied")
			if i%2 == 1 {
				assert.False(t, blockPage.IsReadable(i), "removed slot should not be readable")
			} else {
				assert.True(t, blockPage.IsReadable(i), "slot should be readable")
			}
		} else {
			assert.False(t, blockPage.IsOccupied(i), "slot should not be occupied")
		}
	}

	// a tombstone keeps refusing inserts; only a fresh page reclaims it
	assert.False(t, blockPage.Insert(1, 1, 1))
	assert.False(t, blockPage.IsReadable(1))
}

func TestHashTableHeaderPage(t *testing.T) {
	headerPage := new(HashTableHeaderPage)

	for i := uint32(0); i < 11; i++ {
		headerPage.SetSize(i)
		assert.Equal(t, i, headerPage.GetSize())

		headerPage.SetPageId(types.PageID(i))
		assert.Equal(t, types.PageID(i), headerPage.GetPageId())

		headerPage.SetLSN(types.LSN(i))
		assert.Equal(t, types.LSN(i), headerPage.GetLSN())
	}

	// add a few hypothetical block pages
	for i := 0; i < 10; i++ {
		headerPage.AddBlockPageId(types.PageID(i))
		assert.Equal(t, uint32(i+1), headerPage.NumBlocks())
	}

	// check for correct block page IDs
	for i := uint32(0); i < 10; i++ {
		assert.Equal(t, types.PageID(i), headerPage.GetBlockPageId(i))
	}
}
