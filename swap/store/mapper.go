package store

// BlockMapper resolves a file's logical block numbers to physical blocks
// on the underlying device, in filesystem block units. A result of 0
// means the logical block is unallocated, the classic bmap contract;
// physical block 0 is never handed out for file data.
type BlockMapper interface {
	MapBlock(logical uint64) (uint64, error)
}

// IdentityMapper describes a fully preallocated image whose blocks sit
// contiguously from Base. Base must be non-zero so that block 0 keeps
// meaning "unmapped".
type IdentityMapper struct {
	Blocks uint64
	Base   uint64
}

// NewIdentityMapper covers blocks logical blocks starting at physical
// block 1.
func NewIdentityMapper(blocks uint64) IdentityMapper {
	return IdentityMapper{Blocks: blocks, Base: 1}
}

func (m IdentityMapper) MapBlock(logical uint64) (uint64, error) {
	if logical >= m.Blocks {
		return 0, nil
	}
	return m.Base + logical, nil
}

// TableMapper maps through an explicit table. Zero entries are holes.
// Activation tests use it to lay out fragmented and sparse files.
type TableMapper struct {
	blocks []uint64
}

func NewTableMapper(blocks []uint64) *TableMapper {
	return &TableMapper{blocks: blocks}
}

func (m *TableMapper) MapBlock(logical uint64) (uint64, error) {
	if logical >= uint64(len(m.blocks)) {
		return 0, nil
	}
	return m.blocks[logical], nil
}
