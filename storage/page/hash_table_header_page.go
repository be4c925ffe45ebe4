// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package page

import "github.com/masu-db/MasuDB/types"

// MaxNumBlockPageIds caps the directory so the header struct image fits a
// single page: 4 * 4 bytes of fields + 1020 * 4 bytes of block ids = 4096.
const MaxNumBlockPageIds = 1020

/**
 * Header format (size in byte, 16 bytes in total):
 * -------------------------------------------------------------
 * | PageId (4) | LSN (4) | NextBlockIndex(4) | Size (4)
 * -------------------------------------------------------------
 */
type HashTableHeaderPage struct {
	pageId       types.PageID
	lsn          int32 // log sequence number
	nextIndex    int32 // the next index to add a new entry to blockPageIds
	size         int32 // the number of buckets the directory addresses
	blockPageIds [MaxNumBlockPageIds]types.PageID
}

func (page *HashTableHeaderPage) GetBlockPageId(index uint32) types.PageID {
	return page.blockPageIds[index]
}

func (page *HashTableHeaderPage) GetPageId() types.PageID {
	return page.pageId
}

func (page *HashTableHeaderPage) SetPageId(pageId types.PageID) {
	page.pageId = pageId
}

func (page *HashTableHeaderPage) GetLSN() types.LSN {
	return types.LSN(page.lsn)
}

func (page *HashTableHeaderPage) SetLSN(lsn types.LSN) {
	page.lsn = int32(lsn)
}

// AddBlockPageId appends a block page id to the directory
func (page *HashTableHeaderPage) AddBlockPageId(pageId types.PageID) {
	page.blockPageIds[page.nextIndex] = pageId
	page.nextIndex++
}

// NumBlocks returns the number of block pages the directory lists
func (page *HashTableHeaderPage) NumBlocks() uint32 {
	return uint32(page.nextIndex)
}

// SetSize sets the number of buckets the directory addresses
func (page *HashTableHeaderPage) SetSize(size uint32) {
	page.size = int32(size)
}

// GetSize returns the number of buckets the directory addresses
func (page *HashTableHeaderPage) GetSize() uint32 {
	return uint32(page.size)
}
