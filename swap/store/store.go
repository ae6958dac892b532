package store

import (
	"github.com/gofrs/flock"
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/swap/blockio"
)

type StoreFlags uint32

const (
	// FlagBlockDevice marks a store served by a block device through the
	// request queue.
	FlagBlockDevice StoreFlags = 1 << iota
	// FlagFileBacked marks a store served by direct filesystem I/O.
	FlagFileBacked
	// FlagSlotFreeNotify marks a block store whose device wants to hear
	// when a slot's content became redundant.
	FlagSlotFreeNotify
	// FlagActive is set between activation and deactivation.
	FlagActive
)

func (f StoreFlags) Has(x StoreFlags) bool {
	return f&x != 0
}

// BackingStore is one activated swap target. The extent tree, geometry
// and topology flags are fixed at activation; everything the I/O paths
// read from here is immutable until Deactivate.
type BackingStore struct {
	id    uint32
	name  string
	prio  int
	flags StoreFlags

	pageSize  int
	pageShift uint
	blockBits uint

	extents  *ExtentTree
	maxSlots uint64 // first slot number past the end, header included
	pages    uint64 // usable data slots
	highest  uint64 // highest addressable data slot

	header *Header
	file   *SwapFile
	dev    blockio.Device
	queue  *blockio.Queue
	flock  *flock.Flock
}

func (s *BackingStore) ID() uint32 {
	return s.id
}

func (s *BackingStore) Name() string {
	return s.name
}

func (s *BackingStore) Priority() int {
	return s.prio
}

func (s *BackingStore) Flags() StoreFlags {
	return s.flags
}

func (s *BackingStore) PageSize() int {
	return s.pageSize
}

// MaxSlots returns the first slot number past the end of the store.
func (s *BackingStore) MaxSlots() uint64 {
	return s.maxSlots
}

// Pages returns the number of usable data slots, the header excluded.
func (s *BackingStore) Pages() uint64 {
	return s.pages
}

// HighestSlot returns the highest addressable data slot.
func (s *BackingStore) HighestSlot() uint64 {
	return s.highest
}

func (s *BackingStore) Header() *Header {
	return s.header
}

func (s *BackingStore) Extents() *ExtentTree {
	return s.extents
}

func (s *BackingStore) IsBlockDevice() bool {
	return s.flags.Has(FlagBlockDevice)
}

func (s *BackingStore) IsFileBacked() bool {
	return s.flags.Has(FlagFileBacked)
}

func (s *BackingStore) Active() bool {
	return s.flags.Has(FlagActive)
}

// SupportsSlotFreeNotify reports whether freed slots should be forwarded
// to the device.
func (s *BackingStore) SupportsSlotFreeNotify() bool {
	return s.flags.Has(FlagSlotFreeNotify)
}

// File returns the swap file of a file-backed store, nil otherwise.
func (s *BackingStore) File() *SwapFile {
	return s.file
}

// Device returns the block device of a device-backed store, nil otherwise.
func (s *BackingStore) Device() blockio.Device {
	return s.dev
}

// Queue returns the request queue of a device-backed store, nil otherwise.
func (s *BackingStore) Queue() *blockio.Queue {
	return s.queue
}

// CheckSlot validates that slot can carry page data on this store.
func (s *BackingStore) CheckSlot(slot uint64) error {
	if slot == 0 {
		return errors.NotValidf("slot 0 is the store header")
	}
	if slot > s.highest {
		return errors.NotValidf("slot %d beyond highest slot %d", slot, s.highest)
	}
	return nil
}

// SlotSector translates a slot into the device sector holding its page.
// Block device stores are identity mapped at activation, so the sector
// comes straight from the shift, no extent lookup. Mapper-built stores
// go through the extent tree; block numbers are page-sized units, so the
// mapped block is shifted up by the page-to-sector ratio either way.
func (s *BackingStore) SlotSector(slot uint64) (uint64, error) {
	if s.IsBlockDevice() {
		if slot >= s.maxSlots {
			return 0, errors.NotFoundf("extent for slot %d", slot)
		}
		return slot << (s.pageShift - 9), nil
	}
	e, ok := s.extents.Lookup(slot)
	if !ok {
		return 0, errors.NotFoundf("extent for slot %d", slot)
	}
	block := e.BlockStart + (slot - e.SlotStart)
	return block << (s.pageShift - 9), nil
}

// SlotByteOffset translates a slot into its byte offset inside the swap
// file. File-backed transfers address the file, not the device, so no
// extent translation applies.
func (s *BackingStore) SlotByteOffset(slot uint64) int64 {
	return int64(slot) * int64(s.pageSize)
}

func (s *BackingStore) close() error {
	s.flags &^= FlagActive
	if s.queue != nil {
		s.queue.Close()
	}
	var firstErr error
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.dev != nil {
		if err := s.dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.flock != nil {
		if err := s.flock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return errors.Trace(firstErr)
}
