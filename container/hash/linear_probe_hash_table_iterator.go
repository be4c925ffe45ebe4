// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package hash

import (
	"unsafe"

	"github.com/masu-db/MasuDB/common"
	"github.com/masu-db/MasuDB/storage/buffer"
	"github.com/masu-db/MasuDB/storage/page"
	"github.com/masu-db/MasuDB/types"
)

// hashTableIterator walks a probe sequence bucket by bucket. It keeps
// exactly one block page fetched and latched at a time; crossing a block
// boundary releases the current block before the next one is taken, so a
// probing goroutine can never hold two block latches.
type hashTableIterator struct {
	bpm        *buffer.BufferPoolManager
	headerPage *page.HashTableHeaderPage
	writeMode  bool
	numBuckets uint32
	bucket     uint32 // global bucket index
	blockIndex uint32
	offset     uint32
	blockId    types.PageID
	blockPg    *page.Page
	blockPage  *page.HashTableBlockPage
}

func newHashTableIterator(bpm *buffer.BufferPoolManager, header *page.HashTableHeaderPage, numBuckets uint32, bucket uint32, writeMode bool) *hashTableIterator {
	itr := &hashTableIterator{
		bpm:        bpm,
		headerPage: header,
		writeMode:  writeMode,
		numBuckets: numBuckets,
		bucket:     bucket,
		blockIndex: bucket / page.BlockArraySize,
		offset:     bucket % page.BlockArraySize,
	}
	itr.fetchBlock()
	return itr
}

func (itr *hashTableIterator) fetchBlock() {
	itr.blockId = itr.headerPage.GetBlockPageId(itr.blockIndex)
	itr.blockPg = itr.bpm.FetchPage(itr.blockId)
	common.SH_Assert(itr.blockPg != nil, "hashTableIterator could not fetch block page")
	if itr.writeMode {
		itr.blockPg.WLatch()
	} else {
		itr.blockPg.RLatch()
	}
	itr.blockPage = (*page.HashTableBlockPage)(unsafe.Pointer(itr.blockPg.Data()))
}

// next advances to the next bucket of the probe sequence, wrapping at the
// directory end. dirty tells whether the current block was mutated.
func (itr *hashTableIterator) next(dirty bool) {
	itr.bucket = (itr.bucket + 1) % itr.numBuckets
	blockIndex := itr.bucket / page.BlockArraySize
	itr.offset = itr.bucket % page.BlockArraySize

	if blockIndex != itr.blockIndex {
		itr.release(dirty)
		itr.blockIndex = blockIndex
		itr.fetchBlock()
	}
}

// release unlatches and unpins the current block page
func (itr *hashTableIterator) release(dirty bool) {
	if itr.writeMode {
		itr.blockPg.WUnlatch()
	} else {
		itr.blockPg.RUnlatch()
	}
	itr.bpm.UnpinPage(itr.blockId, dirty)
}
