package store

import (
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/logger"
)

// activateFromMapper builds the extent tree for a file-backed store by
// walking the file's logical blocks through the mapper. maxSlots bounds
// how many slots may be mapped (header slot included), lastBlock is the
// file length in filesystem blocks.
//
// A page needs pageSize/blockSize consecutive, page-aligned physical
// blocks. When the probe lands on a misaligned or discontiguous block it
// advances one block and tries again, so at worst a page-sized run of
// blocks is skipped per usable page. Unallocated blocks mean the file has
// holes and activation fails; nothing of a failed activation is kept.
//
// Returns the number of extents built and the block span, the distance
// between the lowest and highest mapped data block plus one. The header
// slot is mapped but does not count into the span.
func (s *BackingStore) activateFromMapper(mapper BlockMapper, maxSlots, lastBlock uint64) (int, uint64, error) {
	blocksPerPage := uint64(s.pageSize) >> s.blockBits
	if blocksPerPage == 0 {
		return 0, 0, errors.NotValidf("filesystem block size wider than page size")
	}

	var (
		probe     uint64
		pageNo    uint64
		lowest    = ^uint64(0)
		highest   uint64
		nrExtents int
	)

	fail := func(err error) (int, uint64, error) {
		s.extents.Clear()
		return 0, 0, err
	}

	for probe+blocksPerPage <= lastBlock && pageNo < maxSlots {
		first, err := mapper.MapBlock(probe)
		if err != nil {
			return fail(errors.Trace(err))
		}
		if first == 0 {
			return fail(errors.NewNotValid(nil, "swapfile has holes"))
		}
		if first%blocksPerPage != 0 {
			// misaligned page, reprobe one block further
			probe++
			continue
		}

		contiguous := true
		for i := uint64(1); i < blocksPerPage; i++ {
			block, err := mapper.MapBlock(probe + i)
			if err != nil {
				return fail(errors.Trace(err))
			}
			if block == 0 {
				return fail(errors.NewNotValid(nil, "swapfile has holes"))
			}
			if block != first+i {
				probe++
				contiguous = false
				break
			}
		}
		if !contiguous {
			continue
		}

		first >>= s.pageShift - s.blockBits
		if pageNo != 0 {
			// the header slot stays out of the span accounting
			if first < lowest {
				lowest = first
			}
			if first > highest {
				highest = first
			}
		}

		nrExtents += s.extents.Add(pageNo, 1, first)
		pageNo++
		probe += blocksPerPage
	}

	if pageNo == 0 {
		pageNo = 1
	}

	var span uint64
	if pageNo > 1 {
		span = 1 + highest - lowest
	}

	s.maxSlots = pageNo
	s.pages = pageNo - 1
	s.highest = pageNo - 1

	if s.pages == 0 {
		logger.Warnf("store %s: empty swap file, no usable slots", s.name)
	}

	return nrExtents, span, nil
}

// activateIdentity maps a block device store one-to-one: slot n lives at
// block n. One extent covers the whole device.
func (s *BackingStore) activateIdentity(slots uint64) {
	s.extents.Add(0, slots, 0)
	s.maxSlots = slots
	s.pages = slots - 1
	s.highest = slots - 1
}
