// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	"fmt"
	"sort"

	"github.com/golang-collections/collections/stack"
	"github.com/ncw/directio"
	"github.com/sasha-s/go-deadlock"

	"github.com/masu-db/MasuDB/common"
	"github.com/masu-db/MasuDB/storage/disk"
	"github.com/masu-db/MasuDB/storage/page"
	"github.com/masu-db/MasuDB/types"
)

// LogManager is the write-ahead-log collaborator surface the pool consumes.
// The pool only needs to force the log ahead of a dirty page write.
type LogManager interface {
	Flush()
}

// BufferPoolManager represents the buffer pool manager
type BufferPoolManager struct {
	diskManager disk.DiskManager
	pages       []*page.Page // index is FrameID
	replacer    Replacer
	freeList    *stack.Stack // of FrameID
	pageTable   map[types.PageID]FrameID
	logManager  LogManager
	mutex       *deadlock.Mutex
}

// FetchPage fetches the requested page from the buffer pool.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) *page.Page {
	// if it is on buffer pool return it
	b.mutex.Lock()
	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.Pin(frameID)
		b.mutex.Unlock()
		if common.EnableDebug {
			common.ShPrintf(common.DEBUG_INFO, "FetchPage: PageId=%d PinCount=%d\n", pg.GetPageId(), pg.PinCount())
		}
		return pg
	}

	// get a frame from the free list or from the replacer
	frameID, isFromFreeList := b.getFrameID()
	if frameID == nil {
		b.mutex.Unlock()
		return nil
	}

	if !isFromFreeList {
		// cache out the page which occupies the victim frame
		currentPage := b.pages[*frameID]
		if currentPage != nil {
			if currentPage.PinCount() != 0 {
				panic(fmt.Sprintf("BPM::FetchPage pin count of page to be cached out must be zero!!!. pageId:%d PinCount:%d", currentPage.GetPageId(), currentPage.PinCount()))
			}
			if currentPage.IsDirty() {
				if b.logManager != nil {
					b.logManager.Flush()
				}
				currentPage.WLatch()
				data := currentPage.Data()
				b.diskManager.WritePage(currentPage.GetPageId(), data[:])
				currentPage.WUnlatch()
			}
			delete(b.pageTable, currentPage.GetPageId())
		}
	}

	data := directio.AlignedBlock(common.PageSize)
	err := b.diskManager.ReadPage(pageID, data)
	if err != nil {
		// the frame was already vacated, hand it back
		b.freeList.Push(*frameID)
		b.pages[*frameID] = nil
		b.mutex.Unlock()
		common.ShPrintf(common.DEBUG_INFO, "FetchPage: ReadPage failed. PageId=%d err=%v\n", pageID, err)
		return nil
	}
	var pageData [common.PageSize]byte
	copy(pageData[:], data)
	pg := page.New(pageID, false, &pageData)
	b.pageTable[pageID] = *frameID
	b.pages[*frameID] = pg
	b.mutex.Unlock()

	if common.EnableDebug {
		common.ShPrintf(common.DEBUG_INFO, "FetchPage: PageId=%d PinCount=%d\n", pg.GetPageId(), pg.PinCount())
	}
	return pg
}

// UnpinPage unpins the target page from the buffer pool. Unpinning with
// isDirty false never clears a dirty bit set earlier.
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) bool {
	b.mutex.Lock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		b.mutex.Unlock()
		common.ShPrintf(common.DEBUG_INFO, "UnpinPage: could not find page. PageId=%d\n", pageID)
		return false
	}

	pg := b.pages[frameID]
	if pg.PinCount() <= 0 {
		b.mutex.Unlock()
		common.ShPrintf(common.DEBUG_INFO, "UnpinPage: pin count is already zero. PageId=%d\n", pageID)
		return false
	}

	pg.DecPinCount()
	if isDirty {
		pg.SetIsDirty(true)
	}
	if pg.PinCount() <= 0 {
		b.replacer.Unpin(frameID)
	}
	b.mutex.Unlock()

	if common.EnableDebug {
		common.ShPrintf(common.DEBUG_INFO, "UnpinPage: PageId=%d PinCount=%d\n", pageID, pg.PinCount())
	}
	return true
}

// FlushPage flushes the target page to disk. Returns true whenever the page
// is resident and the write went through, clean or not; false only when the
// page is absent or the write failed.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	common.SH_Assert(pageID != types.InvalidPageID, "BPM::FlushPage invalid page id is passed")

	b.mutex.Lock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		b.mutex.Unlock()
		return false
	}
	pg := b.pages[frameID]
	b.mutex.Unlock()

	pg.RLatch()
	data := pg.Data()
	err := b.diskManager.WritePage(pageID, data[:])
	pg.RUnlatch()
	if err != nil {
		return false
	}

	b.mutex.Lock()
	pg.SetIsDirty(false)
	b.mutex.Unlock()
	return true
}

// NewPage allocates a new page in the buffer pool with the disk manager's help
func (b *BufferPoolManager) NewPage() *page.Page {
	b.mutex.Lock()
	frameID, isFromFreeList := b.getFrameID()
	if frameID == nil {
		b.mutex.Unlock()
		return nil // the buffer is full, it can't find a frame
	}

	if !isFromFreeList {
		// cache out the page which occupies the victim frame
		currentPage := b.pages[*frameID]
		if currentPage != nil {
			if currentPage.PinCount() != 0 {
				panic(fmt.Sprintf("BPM::NewPage pin count of page to be cached out must be zero!!!. pageId:%d PinCount:%d", currentPage.GetPageId(), currentPage.PinCount()))
			}
			if currentPage.IsDirty() {
				if b.logManager != nil {
					b.logManager.Flush()
				}
				currentPage.WLatch()
				data := currentPage.Data()
				b.diskManager.WritePage(currentPage.GetPageId(), data[:])
				currentPage.WUnlatch()
			}
			delete(b.pageTable, currentPage.GetPageId())
		}
	}

	pageID := b.diskManager.AllocatePage()
	pg := page.NewEmpty(pageID)

	b.pageTable[pageID] = *frameID
	b.pages[*frameID] = pg
	b.mutex.Unlock()

	if common.EnableDebug {
		common.ShPrintf(common.DEBUG_INFO, "NewPage: returned pageID: %d\n", pageID)
	}
	return pg
}

// DeletePage deletes a page from the buffer pool and deallocates its id.
// A page that is not resident is vacuously deleted. A pinned page refuses.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) bool {
	b.mutex.Lock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		b.mutex.Unlock()
		return true
	}

	pg := b.pages[frameID]
	if pg.PinCount() > 0 {
		b.mutex.Unlock()
		return false
	}

	delete(b.pageTable, pageID)
	b.replacer.Pin(frameID)
	b.pages[frameID] = nil
	b.freeList.Push(frameID)
	b.mutex.Unlock()

	b.diskManager.DeallocatePage(pageID)
	return true
}

// FlushAllPages flushes all the pages in the buffer pool to disk.
// The page table is snapshotted first so per-page flushes do not run with
// the pool latch held.
func (b *BufferPoolManager) FlushAllPages() {
	pageIDs := make([]types.PageID, 0)
	b.mutex.Lock()
	for pageID := range b.pageTable {
		pageIDs = append(pageIDs, pageID)
	}
	b.mutex.Unlock()

	for _, pageID := range pageIDs {
		b.FlushPage(pageID)
	}
}

// FlushAllDirtyPages flushes the pages whose dirty bit is set.
func (b *BufferPoolManager) FlushAllDirtyPages() bool {
	pageIDs := make([]types.PageID, 0)
	b.mutex.Lock()
	for pageID, frameID := range b.pageTable {
		pg := b.pages[frameID]
		if pg.IsDirty() {
			pageIDs = append(pageIDs, pageID)
		}
	}
	b.mutex.Unlock()

	for _, pageID := range pageIDs {
		isSuccess := b.FlushPage(pageID)
		if !isSuccess {
			return false
		}
	}
	return true
}

func (b *BufferPoolManager) getFrameID() (*FrameID, bool) {
	if b.freeList.Len() > 0 {
		frameID := b.freeList.Pop().(FrameID)
		return &frameID, true
	}

	return b.replacer.Victim(), false
}

// GetPoolSize returns the number of frames the pool owns
func (b *BufferPoolManager) GetPoolSize() uint32 {
	return uint32(len(b.pages))
}

// NumResidentPages returns the number of pages the page table holds
func (b *BufferPoolManager) NumResidentPages() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.pageTable)
}

// NumFreeFrames returns the number of frames on the free list
func (b *BufferPoolManager) NumFreeFrames() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.freeList.Len()
}

// PrintBufferUsageState prints the pinned pages with their pin counts
func (b *BufferPoolManager) PrintBufferUsageState(callerAdditionalInfo string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	printStr := fmt.Sprintf("BPM::PrintBufferUsageState %s ", callerAdditionalInfo)
	var pages []*page.Page
	for key := range b.pageTable {
		frameID := b.pageTable[key]
		if b.pages[frameID].PinCount() > 0 {
			pages = append(pages, b.pages[frameID])
		}
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].GetPageId() < pages[j].GetPageId() })

	pageNum := len(pages)
	for ii := 0; ii < pageNum; ii++ {
		printStr += fmt.Sprintf("(%d,%d)-", pages[ii].GetPageId(), pages[ii].PinCount())
	}
	fmt.Println(printStr)
}

// NewBufferPoolManager returns an empty buffer pool manager. logManager may
// be nil when the host runs without a write-ahead log.
func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager, logManager LogManager) *BufferPoolManager {
	freeList := stack.New()
	pages := make([]*page.Page, poolSize)
	for i := poolSize; i > 0; i-- {
		// push in reverse so frame 0 is handed out first
		freeList.Push(FrameID(i - 1))
		pages[i-1] = nil
	}

	replacer := NewClockReplacer(poolSize)
	return &BufferPoolManager{diskManager, pages, replacer, freeList, make(map[types.PageID]FrameID), logManager, new(deadlock.Mutex)}
}
