package store

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
)

// SwapFile is the open file behind a file-backed store. Transfers go
// straight through the filesystem here; the request queue is only for
// block device stores.
type SwapFile struct {
	path string
	file *os.File
	size int64

	mu    sync.Mutex
	dirty map[uint64]struct{}

	readCount  int64
	writeCount int64
}

// OpenSwapFile opens an existing formatted swap file.
func OpenSwapFile(path string) (*SwapFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Annotatef(err, "open swap file %s", path)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Trace(err)
	}
	return &SwapFile{
		path:  path,
		file:  file,
		size:  info.Size(),
		dirty: make(map[uint64]struct{}),
	}, nil
}

// ReadPage fills p from the file at off. Short reads are errors.
func (f *SwapFile) ReadPage(off int64, p []byte) error {
	atomic.AddInt64(&f.readCount, 1)
	n, err := f.file.ReadAt(p, off)
	if err != nil {
		return errors.Trace(err)
	}
	if n != len(p) {
		return errors.Errorf("short read: %d of %d at %d", n, len(p), off)
	}
	return nil
}

// DirectWrite writes p at off and returns the byte count, mirroring the
// direct I/O contract: a short count without an error is possible and the
// caller decides what to do about it.
func (f *SwapFile) DirectWrite(off int64, p []byte) (int, error) {
	atomic.AddInt64(&f.writeCount, 1)
	return f.file.WriteAt(p, off)
}

// MarkDirty records that slot has pending content not yet written back.
func (f *SwapFile) MarkDirty(slot uint64) {
	f.mu.Lock()
	f.dirty[slot] = struct{}{}
	f.mu.Unlock()
}

// ClearDirty drops the pending mark for slot.
func (f *SwapFile) ClearDirty(slot uint64) {
	f.mu.Lock()
	delete(f.dirty, slot)
	f.mu.Unlock()
}

// IsDirty reports whether slot has a pending mark.
func (f *SwapFile) IsDirty(slot uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.dirty[slot]
	return ok
}

// DirtyCount returns the number of slots with pending marks.
func (f *SwapFile) DirtyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dirty)
}

func (f *SwapFile) Sync() error {
	return f.file.Sync()
}

func (f *SwapFile) Size() int64 {
	return f.size
}

func (f *SwapFile) Path() string {
	return f.path
}

func (f *SwapFile) File() *os.File {
	return f.file
}

func (f *SwapFile) Close() error {
	return f.file.Close()
}

// ReadCount returns the number of page reads served.
func (f *SwapFile) ReadCount() int64 {
	return atomic.LoadInt64(&f.readCount)
}

// WriteCount returns the number of direct writes served.
func (f *SwapFile) WriteCount() int64 {
	return atomic.LoadInt64(&f.writeCount)
}
