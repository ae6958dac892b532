package blockio

import (
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
)

// RAMDevice is an in-memory block device with per-page allocation,
// modelled after compressed ram disks used as first-priority swap
// targets. Pages never written read back as zeros, and the discard
// hint releases a page's memory immediately.
//
// RAMDevice implements the synchronous single-page path, so most
// transfers against it never touch the request queue.
type RAMDevice struct {
	mu       sync.RWMutex
	pageSize int
	sectors  uint64
	pages    map[uint64][]byte

	discards int64
}

// NewRAMDevice creates a device of sectors * SectorSize bytes that hands
// out pageSize allocation units.
func NewRAMDevice(pageSize int, sectors uint64) *RAMDevice {
	return &RAMDevice{
		pageSize: pageSize,
		sectors:  sectors,
		pages:    make(map[uint64][]byte),
	}
}

func (d *RAMDevice) size() int64 {
	return int64(d.sectors) * SectorSize
}

func (d *RAMDevice) checkRange(n int, off int64) error {
	if off < 0 || off%SectorSize != 0 {
		return errors.NotValidf("offset %d", off)
	}
	if off+int64(n) > d.size() {
		return errors.NotValidf("transfer [%d, %d) beyond device end %d", off, off+int64(n), d.size())
	}
	return nil
}

func (d *RAMDevice) ReadAt(p []byte, off int64) (int, error) {
	if err := d.checkRange(len(p), off); err != nil {
		return 0, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	read := 0
	for read < len(p) {
		idx := uint64(off+int64(read)) / uint64(d.pageSize)
		inOff := int(off+int64(read)) % d.pageSize
		n := d.pageSize - inOff
		if n > len(p)-read {
			n = len(p) - read
		}
		if pg, ok := d.pages[idx]; ok {
			copy(p[read:read+n], pg[inOff:inOff+n])
		} else {
			for i := read; i < read+n; i++ {
				p[i] = 0
			}
		}
		read += n
	}
	return read, nil
}

func (d *RAMDevice) WriteAt(p []byte, off int64) (int, error) {
	if err := d.checkRange(len(p), off); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	written := 0
	for written < len(p) {
		idx := uint64(off+int64(written)) / uint64(d.pageSize)
		inOff := int(off+int64(written)) % d.pageSize
		n := d.pageSize - inOff
		if n > len(p)-written {
			n = len(p) - written
		}
		pg, ok := d.pages[idx]
		if !ok {
			pg = make([]byte, d.pageSize)
			d.pages[idx] = pg
		}
		copy(pg[inOff:inOff+n], p[written:written+n])
		written += n
	}
	return written, nil
}

// ReadPage serves the synchronous single-page read path.
func (d *RAMDevice) ReadPage(sector uint64, p []byte) error {
	n, err := d.ReadAt(p, int64(sector)*SectorSize)
	if err != nil {
		return err
	}
	if n != len(p) {
		return errors.Errorf("short page read: %d of %d", n, len(p))
	}
	return nil
}

// WritePage serves the synchronous single-page write path.
func (d *RAMDevice) WritePage(sector uint64, p []byte) error {
	n, err := d.WriteAt(p, int64(sector)*SectorSize)
	if err != nil {
		return err
	}
	if n != len(p) {
		return errors.Errorf("short page write: %d of %d", n, len(p))
	}
	return nil
}

// SlotFreeNotify releases the memory behind a slot. Slot offsets are
// page-granular, which matches this device's allocation unit when the
// store maps slots to sectors identity-wise.
func (d *RAMDevice) SlotFreeNotify(offset uint64) {
	d.mu.Lock()
	if _, ok := d.pages[offset]; ok {
		delete(d.pages, offset)
		atomic.AddInt64(&d.discards, 1)
	}
	d.mu.Unlock()
}

func (d *RAMDevice) Sync() error {
	return nil
}

func (d *RAMDevice) Sectors() uint64 {
	return d.sectors
}

func (d *RAMDevice) Close() error {
	d.mu.Lock()
	d.pages = make(map[uint64][]byte)
	d.mu.Unlock()
	return nil
}

// PagesStored returns how many pages currently hold data.
func (d *RAMDevice) PagesStored() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.pages)
}

// Discards returns how many slots were released through the free hint.
func (d *RAMDevice) Discards() int64 {
	return atomic.LoadInt64(&d.discards)
}
