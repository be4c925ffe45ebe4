package hash

import (
	"sync"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masu-db/MasuDB/storage/buffer"
	"github.com/masu-db/MasuDB/storage/disk"
	"github.com/masu-db/MasuDB/types"
)

func TestHashTable(t *testing.T) {
	diskManager := disk.NewDiskManagerTest()
	defer diskManager.ShutDown()
	bpm := buffer.NewBufferPoolManager(10, diskManager, nil)

	ht := NewLinearProbeHashTable("test_index", bpm, UInt32Comparator, 1000, GenHashMurMur)

	for i := uint32(0); i < 5; i++ {
		assert.True(t, ht.Insert(i, i))
		res := ht.GetValue(i)
		require.Equal(t, 1, len(res))
		assert.Equal(t, i, res[0])
	}
	assert.Equal(t, uint32(5), ht.GetSize())

	for i := uint32(0); i < 5; i++ {
		res := ht.GetValue(i)
		require.Equal(t, 1, len(res))
		assert.Equal(t, i, res[0])
	}

	// test for duplicate values
	for i := uint32(0); i < 5; i++ {
		if i == 0 {
			// (0, 0) is already stored
			assert.False(t, ht.Insert(i, 2*i))
		} else {
			assert.True(t, ht.Insert(i, 2*i))
		}
		// the exact pair is stored at most once
		assert.False(t, ht.Insert(i, 2*i))
		res := ht.GetValue(i)
		if i == 0 {
			require.Equal(t, 1, len(res))
			assert.Equal(t, i, res[0])
		} else {
			require.Equal(t, 2, len(res))
			if res[0] == i {
				assert.Equal(t, 2*i, res[1])
			} else {
				assert.Equal(t, 2*i, res[0])
				assert.Equal(t, i, res[1])
			}
		}
	}
	assert.Equal(t, uint32(9), ht.GetSize())

	// look for a key that does not exist
	res := ht.GetValue(20)
	assert.Equal(t, 0, len(res))

	// delete some values
	for i := uint32(0); i < 5; i++ {
		assert.True(t, ht.Remove(i, i))
		res := ht.GetValue(i)

		if i == 0 {
			assert.Equal(t, 0, len(res))
		} else {
			require.Equal(t, 1, len(res))
			assert.Equal(t, 2*i, res[0])
		}
	}
	assert.Equal(t, uint32(4), ht.GetSize())

	// removing a pair that is not stored
	assert.False(t, ht.Remove(0, 0))
	assert.False(t, ht.Remove(42, 42))

	bpm.FlushAllPages()
}

func TestHashTableTombstone(t *testing.T) {
	diskManager := disk.NewDiskManagerTest()
	defer diskManager.ShutDown()
	bpm := buffer.NewBufferPoolManager(10, diskManager, nil)

	ht := NewLinearProbeHashTable("tombstone", bpm, UInt32Comparator, 100, GenHashMurMur)

	assert.True(t, ht.Insert(7, 70))
	assert.True(t, ht.Remove(7, 70))
	assert.Equal(t, 0, len(ht.GetValue(7)))

	// the tombstone does not block a later insert of the same key
	assert.True(t, ht.Insert(7, 71))
	res := ht.GetValue(7)
	require.Equal(t, 1, len(res))
	assert.Equal(t, uint32(71), res[0])
	assert.Equal(t, uint32(1), ht.GetSize())
}

func TestHashTableResize(t *testing.T) {
	diskManager := disk.NewDiskManagerTest()
	defer diskManager.ShutDown()
	bpm := buffer.NewBufferPoolManager(10, diskManager, nil)

	// a table addressing 4 buckets only; growing is the common case here
	ht := NewLinearProbeHashTable("resize", bpm, UInt32Comparator, 4, GenHashMurMur)

	numPairs := uint32(64)
	for i := uint32(0); i < numPairs; i++ {
		assert.True(t, ht.Insert(i, i*10))
	}
	assert.Equal(t, numPairs, ht.GetSize())

	// every pair survived the rebuilds
	for i := uint32(0); i < numPairs; i++ {
		res := ht.GetValue(i)
		require.Equal(t, 1, len(res), "key %d", i)
		assert.Equal(t, i*10, res[0])
	}

	// a resize against a stale observed size is skipped
	headerBefore := ht.GetHeaderPageId()
	ht.Resize(1)
	assert.Equal(t, headerBefore, ht.GetHeaderPageId())

	// an explicit grow past the current directory rebuilds it and keeps
	// the pairs
	ht.Resize(2 * numPairs)
	assert.NotEqual(t, headerBefore, ht.GetHeaderPageId())
	assert.Equal(t, numPairs, ht.GetSize())
	for i := uint32(0); i < numPairs; i++ {
		res := ht.GetValue(i)
		require.Equal(t, 1, len(res))
		assert.Equal(t, i*10, res[0])
	}
}

func TestHashTableResizeDropsTombstones(t *testing.T) {
	diskManager := disk.NewDiskManagerTest()
	defer diskManager.ShutDown()
	bpm := buffer.NewBufferPoolManager(10, diskManager, nil)

	ht := NewLinearProbeHashTable("resize_tombstone", bpm, UInt32Comparator, 8, GenHashMurMur)

	for i := uint32(0); i < 8; i++ {
		assert.True(t, ht.Insert(i, i))
	}
	for i := uint32(0); i < 8; i++ {
		assert.True(t, ht.Remove(i, i))
	}
	assert.Equal(t, uint32(0), ht.GetSize())

	// every slot is a tombstone now; the insert probes the full directory,
	// grows it and lands in the fresh one
	assert.True(t, ht.Insert(100, 100))
	res := ht.GetValue(100)
	require.Equal(t, 1, len(res))
	assert.Equal(t, uint32(100), res[0])
	for i := uint32(0); i < 8; i++ {
		assert.Equal(t, 0, len(ht.GetValue(i)))
	}
}

func TestHashTableConcurrentInsert(t *testing.T) {
	diskManager := disk.NewDiskManagerTest()
	defer diskManager.ShutDown()
	bpm := buffer.NewBufferPoolManager(10, diskManager, nil)

	ht := NewLinearProbeHashTable("concurrent", bpm, UInt32Comparator, 1000, GenHashMurMur)

	numThreads := uint32(5)
	numKeys := uint32(111)

	var wg sync.WaitGroup
	for tid := uint32(0); tid < numThreads; tid++ {
		wg.Add(1)
		go func(tid uint32) {
			defer wg.Done()
			for k := uint32(1); k <= numKeys; k++ {
				assert.True(t, ht.Insert(k, k*(tid+1)))
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, numThreads*numKeys, ht.GetSize())

	for k := uint32(1); k <= numKeys; k++ {
		res := ht.GetValue(k)
		require.Equal(t, int(numThreads), len(res), "key %d", k)

		values := mapset.NewSet[uint32]()
		for _, v := range res {
			values.Add(v)
		}
		// all five values are distinct
		assert.Equal(t, int(numThreads), values.Cardinality())
		for tid := uint32(0); tid < numThreads; tid++ {
			assert.True(t, values.Contains(k*(tid+1)))
		}
	}
}

func TestHashTableReopen(t *testing.T) {
	diskManager := disk.NewVirtualDiskManagerImpl("reopen.db")
	defer diskManager.ShutDown()

	bpm := buffer.NewBufferPoolManager(10, diskManager, nil)
	ht := NewLinearProbeHashTable("reopen", bpm, UInt32Comparator, 500, GenHashMurMur)
	// the header page is the first page the pool allocates
	assert.Equal(t, types.PageID(0), ht.GetHeaderPageId())

	for i := uint32(0); i < 100; i++ {
		assert.True(t, ht.Insert(i, i+1000))
	}
	assert.True(t, ht.Remove(3, 1003))
	bpm.FlushAllPages()

	// a fresh pool over the same file sees every surviving pair
	bpm2 := buffer.NewBufferPoolManager(10, diskManager, nil)
	reopened := OpenLinearProbeHashTable(bpm2, UInt32Comparator, ht.GetHeaderPageId(), GenHashMurMur)

	assert.Equal(t, uint32(99), reopened.GetSize())
	for i := uint32(0); i < 100; i++ {
		res := reopened.GetValue(i)
		if i == 3 {
			assert.Equal(t, 0, len(res))
			continue
		}
		require.Equal(t, 1, len(res), "key %d", i)
		assert.Equal(t, i+1000, res[0])
	}

	// the reopened table keeps serving writes
	assert.True(t, reopened.Insert(3, 1003))
	assert.Equal(t, uint32(100), reopened.GetSize())
}

func TestHashTableWithXXHash(t *testing.T) {
	diskManager := disk.NewDiskManagerTest()
	defer diskManager.ShutDown()
	bpm := buffer.NewBufferPoolManager(10, diskManager, nil)

	// the hash function is a constructor argument; xxhash works as well as
	// murmur as long as create and reopen agree on it
	ht := NewLinearProbeHashTable("xx_index", bpm, UInt32Comparator, 200, GenHashXX)

	for i := uint32(0); i < 50; i++ {
		assert.True(t, ht.Insert(i, i*2))
	}
	for i := uint32(0); i < 50; i++ {
		res := ht.GetValue(i)
		require.Equal(t, 1, len(res))
		assert.Equal(t, i*2, res[0])
	}
	assert.Equal(t, uint32(50), ht.GetSize())
}
