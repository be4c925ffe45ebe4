// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package hash

import (
	"sync/atomic"
	"unsafe"

	pair "github.com/notEpsilon/go-pair"

	"github.com/masu-db/MasuDB/common"
	"github.com/masu-db/MasuDB/storage/buffer"
	"github.com/masu-db/MasuDB/storage/page"
	"github.com/masu-db/MasuDB/types"
)

/**
 * Implementation of linear probing hash table that is backed by a buffer pool
 * manager. Non-unique keys are supported: the same key may map to several
 * values, but an exact (key, value) pair is stored at most once. The table
 * dynamically grows once full.
 */
type LinearProbeHashTable struct {
	name         string
	headerPageId types.PageID
	bpm          *buffer.BufferPoolManager
	comparator   KeyComparator
	hashFn       HashFunc
	numBuckets   uint32 // guarded by tableLatch
	size         int32  // live entry count, accessed atomically
	tableLatch   common.ReaderWriterLatch
}

// NewLinearProbeHashTable creates a fresh directory: one header page plus
// enough zeroed block pages to address numBuckets buckets.
func NewLinearProbeHashTable(name string, bpm *buffer.BufferPoolManager, comparator KeyComparator, numBuckets uint32, hashFn HashFunc) *LinearProbeHashTable {
	ht := &LinearProbeHashTable{
		name:       name,
		bpm:        bpm,
		comparator: comparator,
		hashFn:     hashFn,
		tableLatch: common.NewRWLatch(),
	}
	ht.headerPageId = ht.buildDirectory(numBuckets)
	ht.numBuckets = numBuckets
	return ht
}

// OpenLinearProbeHashTable reopens a table from a header page persisted
// earlier. The bucket count and the directory come from the header; the
// live entry count is recounted from the readable bitmaps.
func OpenLinearProbeHashTable(bpm *buffer.BufferPoolManager, comparator KeyComparator, headerPageId types.PageID, hashFn HashFunc) *LinearProbeHashTable {
	ht := &LinearProbeHashTable{
		headerPageId: headerPageId,
		bpm:          bpm,
		comparator:   comparator,
		hashFn:       hashFn,
		tableLatch:   common.NewRWLatch(),
	}

	hPage := bpm.FetchPage(headerPageId)
	common.SH_Assert(hPage != nil, "LinearProbeHashTable::Open could not fetch header page")
	hPage.RLatch()
	headerPage := (*page.HashTableHeaderPage)(unsafe.Pointer(hPage.Data()))
	ht.numBuckets = headerPage.GetSize()

	var count int32
	for i := uint32(0); i < headerPage.NumBlocks(); i++ {
		blockPageId := headerPage.GetBlockPageId(i)
		bPage := bpm.FetchPage(blockPageId)
		bPage.RLatch()
		blockPage := (*page.HashTableBlockPage)(unsafe.Pointer(bPage.Data()))
		for slot := uint32(0); slot < page.BlockArraySize; slot++ {
			if blockPage.IsReadable(slot) {
				count++
			}
		}
		bPage.RUnlatch()
		bpm.UnpinPage(blockPageId, false)
	}
	ht.size = count

	hPage.RUnlatch()
	bpm.UnpinPage(headerPageId, false)

	return ht
}

// GetValue collects every value stored under key. The scan stops at the
// first never-used slot of the probe sequence.
func (ht *LinearProbeHashTable) GetValue(key uint32) []uint32 {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	hPage := ht.bpm.FetchPage(ht.headerPageId)
	common.SH_Assert(hPage != nil, "LinearProbeHashTable could not fetch header page")
	hPage.RLatch()
	headerPage := (*page.HashTableHeaderPage)(unsafe.Pointer(hPage.Data()))

	numBuckets := ht.numBuckets
	bucket := ht.hashOf(key) % numBuckets
	itr := newHashTableIterator(ht.bpm, headerPage, numBuckets, bucket, false)

	result := []uint32{}
	for i := uint32(0); i < numBuckets; i++ {
		if !itr.blockPage.IsOccupied(itr.offset) {
			// the key cannot live further along the probe sequence
			break
		}
		if itr.blockPage.IsReadable(itr.offset) && ht.comparator(key, itr.blockPage.KeyAt(itr.offset)) == 0 {
			result = append(result, itr.blockPage.ValueAt(itr.offset))
		}
		itr.next(false)
	}

	itr.release(false)
	hPage.RUnlatch()
	ht.bpm.UnpinPage(ht.headerPageId, false)

	return result
}

// Insert stores the pair. Exact (key, value) duplicates are refused. A full
// table triggers a resize and the insert restarts against the grown
// directory.
func (ht *LinearProbeHashTable) Insert(key uint32, value uint32) bool {
	for {
		inserted, full, observed := ht.insertProbe(key, value)
		if !full {
			return inserted
		}
		ht.Resize(observed)
	}
}

// insertProbe runs one insert attempt under the directory read lock, so
// concurrent inserts proceed in parallel and Resize is the only writer.
func (ht *LinearProbeHashTable) insertProbe(key uint32, value uint32) (inserted bool, full bool, observed uint32) {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	if ht.GetSize() >= ht.numBuckets {
		return false, true, ht.GetSize()
	}

	inserted, full = ht.insertInner(key, value)
	return inserted, full, ht.numBuckets
}

// insertInner probes for a never-used slot. The caller holds tableLatch in
// either mode. Reports full=true when every bucket of the sequence was
// occupied.
func (ht *LinearProbeHashTable) insertInner(key uint32, value uint32) (bool, bool) {
	hPage := ht.bpm.FetchPage(ht.headerPageId)
	common.SH_Assert(hPage != nil, "LinearProbeHashTable could not fetch header page")
	hPage.RLatch()
	headerPage := (*page.HashTableHeaderPage)(unsafe.Pointer(hPage.Data()))

	numBuckets := ht.numBuckets
	bucket := ht.hashOf(key) % numBuckets
	itr := newHashTableIterator(ht.bpm, headerPage, numBuckets, bucket, true)

	releaseAll := func(dirty bool) {
		itr.release(dirty)
		hPage.RUnlatch()
		ht.bpm.UnpinPage(ht.headerPageId, false)
	}

	for i := uint32(0); i < numBuckets; i++ {
		if itr.blockPage.IsReadable(itr.offset) &&
			ht.comparator(key, itr.blockPage.KeyAt(itr.offset)) == 0 &&
			itr.blockPage.ValueAt(itr.offset) == value {
			// duplicated (key, value) pairs are not allowed
			releaseAll(false)
			return false, false
		}

		if itr.blockPage.Insert(itr.offset, key, value) {
			atomic.AddInt32(&ht.size, 1)
			releaseAll(true)
			return true, false
		}

		itr.next(false)
	}

	releaseAll(false)
	return false, true
}

// Remove deletes the exact (key, value) pair, leaving a tombstone so probe
// sequences over other keys stay intact.
func (ht *LinearProbeHashTable) Remove(key uint32, value uint32) bool {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	hPage := ht.bpm.FetchPage(ht.headerPageId)
	common.SH_Assert(hPage != nil, "LinearProbeHashTable could not fetch header page")
	hPage.RLatch()
	headerPage := (*page.HashTableHeaderPage)(unsafe.Pointer(hPage.Data()))

	numBuckets := ht.numBuckets
	bucket := ht.hashOf(key) % numBuckets
	itr := newHashTableIterator(ht.bpm, headerPage, numBuckets, bucket, true)

	releaseAll := func(dirty bool) {
		itr.release(dirty)
		hPage.RUnlatch()
		ht.bpm.UnpinPage(ht.headerPageId, false)
	}

	for i := uint32(0); i < numBuckets; i++ {
		if !itr.blockPage.IsOccupied(itr.offset) {
			releaseAll(false)
			return false
		}
		if itr.blockPage.IsReadable(itr.offset) &&
			ht.comparator(key, itr.blockPage.KeyAt(itr.offset)) == 0 &&
			itr.blockPage.ValueAt(itr.offset) == value {
			itr.blockPage.Remove(itr.offset)
			atomic.AddInt32(&ht.size, -1)
			releaseAll(true)
			return true
		}
		itr.next(false)
	}

	releaseAll(false)
	return false
}

// Resize grows the directory to at least twice the size the caller
// observed when it detected fullness. When a concurrent resize already
// grew past that, this one returns without work. Live pairs are carried
// into the fresh directory; old pages are deleted through the buffer pool,
// which also drops every tombstone.
func (ht *LinearProbeHashTable) Resize(observedSize uint32) {
	ht.tableLatch.WLock()
	defer ht.tableLatch.WUnlock()

	newNumBuckets := 2 * observedSize
	if newNumBuckets <= ht.numBuckets {
		// another writer already resized
		return
	}

	oldHeaderPageId := ht.headerPageId
	oldHPage := ht.bpm.FetchPage(oldHeaderPageId)
	common.SH_Assert(oldHPage != nil, "LinearProbeHashTable::Resize could not fetch header page")
	oldHeader := (*page.HashTableHeaderPage)(unsafe.Pointer(oldHPage.Data()))

	// the fresh directory is allocated while the old pages still hold their
	// ids, so the new header never reuses the old header's id
	newHeaderPageId := ht.buildDirectory(newNumBuckets)

	// collect the live pairs before the directory is swapped
	pairs := make([]pair.Pair[uint32, uint32], 0, ht.GetSize())
	for i := uint32(0); i < oldHeader.NumBlocks(); i++ {
		blockPageId := oldHeader.GetBlockPageId(i)
		bPage := ht.bpm.FetchPage(blockPageId)
		bPage.RLatch()
		blockPage := (*page.HashTableBlockPage)(unsafe.Pointer(bPage.Data()))
		for slot := uint32(0); slot < page.BlockArraySize; slot++ {
			if blockPage.IsReadable(slot) {
				pairs = append(pairs, pair.Pair[uint32, uint32]{First: blockPage.KeyAt(slot), Second: blockPage.ValueAt(slot)})
			}
		}
		bPage.RUnlatch()
		ht.bpm.UnpinPage(blockPageId, false)
		ht.bpm.DeletePage(blockPageId)
	}
	ht.bpm.UnpinPage(oldHeaderPageId, false)
	ht.bpm.DeletePage(oldHeaderPageId)

	ht.headerPageId = newHeaderPageId
	ht.numBuckets = newNumBuckets
	atomic.StoreInt32(&ht.size, 0)

	for _, kv := range pairs {
		inserted, _ := ht.insertInner(kv.First, kv.Second)
		common.SH_Assert(inserted, "LinearProbeHashTable::Resize reinsert must succeed")
	}
}

// buildDirectory allocates a header page and the block pages addressing
// numBuckets buckets, and returns the header page id.
func (ht *LinearProbeHashTable) buildDirectory(numBuckets uint32) types.PageID {
	numBlocks := (numBuckets-1)/page.BlockArraySize + 1
	common.SH_Assert(numBlocks <= page.MaxNumBlockPageIds, "LinearProbeHashTable directory overflows the header page")

	hPage := ht.bpm.NewPage()
	common.SH_Assert(hPage != nil, "LinearProbeHashTable could not allocate header page")
	headerPage := (*page.HashTableHeaderPage)(unsafe.Pointer(hPage.Data()))

	headerPage.SetPageId(hPage.GetPageId())
	headerPage.SetSize(numBuckets)

	for i := uint32(0); i < numBlocks; i++ {
		np := ht.bpm.NewPage()
		common.SH_Assert(np != nil, "LinearProbeHashTable could not allocate block page")
		headerPage.AddBlockPageId(np.GetPageId())
		ht.bpm.UnpinPage(np.GetPageId(), true)
	}
	ht.bpm.UnpinPage(hPage.GetPageId(), true)

	return hPage.GetPageId()
}

// GetSize returns the number of live pairs
func (ht *LinearProbeHashTable) GetSize() uint32 {
	return uint32(atomic.LoadInt32(&ht.size))
}

// GetHeaderPageId returns the page id the directory lives at
func (ht *LinearProbeHashTable) GetHeaderPageId() types.PageID {
	return ht.headerPageId
}

// GetName returns the name the table was created under
func (ht *LinearProbeHashTable) GetName() string {
	return ht.name
}

func (ht *LinearProbeHashTable) hashOf(key uint32) uint32 {
	return ht.hashFn(types.UInt32(key).Serialize())
}
