package disk

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dsnet/golib/memfile"
	"github.com/pkg/errors"

	"github.com/masu-db/MasuDB/common"
	"github.com/masu-db/MasuDB/types"
)

// VirtualDiskManagerImpl keeps the whole database file on memory. It is a
// drop-in for DiskManagerImpl in tests and benchmarks.
type VirtualDiskManagerImpl struct {
	db           *memfile.File
	fileName     string
	nextPageID   types.PageID
	deallocedIDs mapset.Set[types.PageID]
	numWrites    uint64
	size         int64
	dbFileMutex  *sync.Mutex
}

func NewVirtualDiskManagerImpl(dbFilename string) DiskManager {
	file := memfile.New(make([]byte, 0))

	return &VirtualDiskManagerImpl{file, dbFilename, types.PageID(0), mapset.NewSet[types.PageID](), 0, int64(0), new(sync.Mutex)}
}

// ShutDown does nothing. The file vanishes with the process.
func (d *VirtualDiskManagerImpl) ShutDown() {
}

// WritePage writes a page to the virtual database file
func (d *VirtualDiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageId) * common.PageSize
	bytesWritten, err := d.db.WriteAt(pageData, offset)
	if err != nil {
		return errors.Wrap(err, "I/O error while writing page")
	}

	if bytesWritten != common.PageSize {
		return errors.Errorf("bytes written (%d) not equals page size", bytesWritten)
	}

	if offset >= d.size {
		d.size = offset + int64(bytesWritten)
	}

	d.numWrites += 1
	return nil
}

// ReadPage reads a page from the virtual database file
func (d *VirtualDiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if d.deallocedIDs.Contains(pageID) {
		return types.DeallocatedPageErr
	}

	offset := int64(pageID) * common.PageSize

	fileSize := int64(len(d.db.Bytes()))
	if offset > fileSize {
		return errors.New("I/O error past end of file")
	}

	bytesRead, _ := d.db.ReadAt(pageData, offset)

	// a page written short of the file end reads back zero filled
	if bytesRead < common.PageSize {
		for i := bytesRead; i < common.PageSize; i++ {
			pageData[i] = 0
		}
	}
	return nil
}

// AllocatePage returns a page id. Ids of deallocated pages are handed out
// again before the monotonic counter advances.
func (d *VirtualDiskManagerImpl) AllocatePage() types.PageID {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if pageID, ok := d.deallocedIDs.Pop(); ok {
		return pageID
	}

	ret := d.nextPageID
	d.nextPageID++
	return ret
}

// DeallocatePage returns the page id to the allocator
func (d *VirtualDiskManagerImpl) DeallocatePage(pageID types.PageID) {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	d.deallocedIDs.Add(pageID)
}

// GetNumWrites returns the number of page writes
func (d *VirtualDiskManagerImpl) GetNumWrites() uint64 {
	return d.numWrites
}

// Size returns the size of the virtual file
func (d *VirtualDiskManagerImpl) Size() int64 {
	return d.size
}
