package store

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func newScanStore(pageSize int, pageShift, blockBits uint) *BackingStore {
	return &BackingStore{
		name:      "scan-test",
		pageSize:  pageSize,
		pageShift: pageShift,
		blockBits: blockBits,
		extents:   NewExtentTree(),
	}
}

func TestActivateContiguousFile(t *testing.T) {
	// four page-sized blocks in a row: slots 0-3, one extent
	s := newScanStore(4096, 12, 12)
	mapper := NewTableMapper([]uint64{5, 6, 7, 8})

	nrExtents, span, err := s.activateFromMapper(mapper, 64, 4)
	assert.NoError(t, err)
	assert.Equal(t, 1, nrExtents)
	assert.Equal(t, uint64(3), span, "header slot stays out of the span")
	assert.Equal(t, uint64(4), s.MaxSlots())
	assert.Equal(t, uint64(3), s.Pages())
	assert.Equal(t, uint64(3), s.HighestSlot())

	e, ok := s.extents.Lookup(3)
	assert.True(t, ok)
	assert.Equal(t, Extent{SlotStart: 0, Count: 4, BlockStart: 5}, e)
}

func TestActivateRejectsHoles(t *testing.T) {
	s := newScanStore(4096, 12, 12)
	mapper := NewTableMapper([]uint64{5, 6, 0, 8})

	_, _, err := s.activateFromMapper(mapper, 64, 4)
	assert.True(t, errors.IsNotValid(err))
	assert.Contains(t, err.Error(), "swapfile has holes")
	assert.Equal(t, 0, s.extents.Len(), "failed activation keeps nothing")
}

func TestActivateFragmentedFile(t *testing.T) {
	// two runs of blocks produce two extents; span covers the distance
	s := newScanStore(4096, 12, 12)
	mapper := NewTableMapper([]uint64{10, 11, 20, 21})

	nrExtents, span, err := s.activateFromMapper(mapper, 64, 4)
	assert.NoError(t, err)
	assert.Equal(t, 2, nrExtents)
	assert.Equal(t, uint64(11), span) // blocks 11..21
	assert.Equal(t, uint64(3), s.Pages())
}

func TestActivateSubPageBlocks(t *testing.T) {
	// 512-byte filesystem blocks: a page needs 8 aligned consecutive blocks
	s := newScanStore(4096, 12, 9)
	blocks := make([]uint64, 24)
	for i := range blocks {
		blocks[i] = uint64(8 + i) // aligned run starting at block 8
	}
	mapper := NewTableMapper(blocks)

	nrExtents, span, err := s.activateFromMapper(mapper, 64, 24)
	assert.NoError(t, err)
	assert.Equal(t, 1, nrExtents)
	assert.Equal(t, uint64(3), s.MaxSlots())
	assert.Equal(t, uint64(2), s.Pages())
	// page-unit blocks 1,2,3; header block 1 excluded
	assert.Equal(t, uint64(2), span)

	e, ok := s.extents.Lookup(0)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), e.BlockStart)
}

func TestActivateReprobesMisalignment(t *testing.T) {
	// physical placement starts mid-page; the probe has to slide until a
	// page-aligned run appears
	s := newScanStore(4096, 12, 9)
	blocks := make([]uint64, 20)
	for i := range blocks {
		blocks[i] = uint64(4 + i) // run starts at block 4: misaligned
	}
	mapper := NewTableMapper(blocks)

	nrExtents, _, err := s.activateFromMapper(mapper, 64, 20)
	assert.NoError(t, err)
	assert.Equal(t, 1, nrExtents)
	// logical blocks 4..19 map to physical 8..23: two aligned pages, one
	// of which is the header slot
	assert.Equal(t, uint64(1), s.Pages())

	e, ok := s.extents.Lookup(0)
	assert.True(t, ok)
	assert.Equal(t, Extent{SlotStart: 0, Count: 2, BlockStart: 1}, e)
}

func TestActivateReprobesDiscontiguity(t *testing.T) {
	s := newScanStore(4096, 12, 9)
	blocks := make([]uint64, 24)
	for i := 0; i < 8; i++ {
		blocks[i] = uint64(8 + i)
	}
	blocks[7] = 99 // break the first run on its last block
	for i := 8; i < 24; i++ {
		blocks[i] = uint64(16 + (i - 8))
	}
	mapper := NewTableMapper(blocks)

	_, _, err := s.activateFromMapper(mapper, 64, 24)
	assert.NoError(t, err)
	// first candidate run is abandoned, scan recovers at logical block 8
	// and maps two pages from there
	assert.Equal(t, uint64(1), s.Pages())
	e, ok := s.extents.Lookup(0)
	assert.True(t, ok)
	assert.Equal(t, Extent{SlotStart: 0, Count: 2, BlockStart: 2}, e)
}

func TestActivateHonorsMaxSlots(t *testing.T) {
	s := newScanStore(4096, 12, 12)
	blocks := make([]uint64, 10)
	for i := range blocks {
		blocks[i] = uint64(1 + i)
	}
	mapper := NewTableMapper(blocks)

	_, _, err := s.activateFromMapper(mapper, 4, 10)
	assert.NoError(t, err)
	assert.Equal(t, uint64(4), s.MaxSlots())
	assert.Equal(t, uint64(3), s.Pages())
	assert.Equal(t, uint64(3), s.HighestSlot())
}

func TestActivateEmptyFile(t *testing.T) {
	s := newScanStore(4096, 12, 12)
	mapper := NewTableMapper(nil)

	nrExtents, span, err := s.activateFromMapper(mapper, 64, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, nrExtents)
	assert.Equal(t, uint64(0), span)
	// the slot count is forced to one so the store is never zero-sized
	assert.Equal(t, uint64(1), s.MaxSlots())
	assert.Equal(t, uint64(0), s.Pages())
}

type failingMapper struct{}

func (failingMapper) MapBlock(uint64) (uint64, error) {
	return 0, errors.New("mapper I/O error")
}

func TestActivateMapperErrorPropagates(t *testing.T) {
	s := newScanStore(4096, 12, 12)
	_, _, err := s.activateFromMapper(failingMapper{}, 64, 4)
	assert.Error(t, err)
	assert.Equal(t, 0, s.extents.Len())
}

func TestActivateIdentity(t *testing.T) {
	s := newScanStore(4096, 12, 12)
	s.activateIdentity(256)

	assert.Equal(t, uint64(256), s.MaxSlots())
	assert.Equal(t, uint64(255), s.Pages())
	assert.Equal(t, 1, s.extents.Len())

	sector, err := s.SlotSector(5)
	assert.NoError(t, err)
	assert.Equal(t, uint64(5<<3), sector, "slot to sector is a shift by the page-to-sector ratio")
}

func TestSlotSectorUsesExtentMapping(t *testing.T) {
	s := newScanStore(4096, 12, 12)
	mapper := NewTableMapper([]uint64{10, 11, 20, 21})
	_, _, err := s.activateFromMapper(mapper, 64, 4)
	assert.NoError(t, err)

	sector, err := s.SlotSector(2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(20<<3), sector)

	_, err = s.SlotSector(9)
	assert.True(t, errors.IsNotFound(err))
}

func TestSlotSectorBlockDeviceFormula(t *testing.T) {
	s := newScanStore(4096, 12, 12)
	s.flags |= FlagBlockDevice
	s.activateIdentity(16)

	sector, err := s.SlotSector(7)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7<<3), sector)

	// the identity mapping is a property of the store, not of the tree
	s.extents.Clear()
	sector, err = s.SlotSector(7)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7<<3), sector)

	_, err = s.SlotSector(16)
	assert.True(t, errors.IsNotFound(err))
}

func TestCheckSlot(t *testing.T) {
	s := newScanStore(4096, 12, 12)
	s.activateIdentity(16)

	assert.Error(t, s.CheckSlot(0), "header slot carries no data")
	assert.NoError(t, s.CheckSlot(1))
	assert.NoError(t, s.CheckSlot(15))
	assert.Error(t, s.CheckSlot(16))
}
