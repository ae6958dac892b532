package blockio

// SectorSize is the transfer unit devices are addressed in. Slot numbers
// are converted to sectors by the backing store before a request is built.
const SectorSize = 512

// Device is the minimal block device surface the swap path needs. Offsets
// are byte offsets, always sector aligned.
type Device interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
	Sectors() uint64
	Close() error
}

// PageRWDevice is the optional synchronous single-page path. Devices that
// complete transfers in the caller's context (RAM-backed ones) implement
// it so small transfers skip the request queue.
type PageRWDevice interface {
	ReadPage(sector uint64, p []byte) error
	WritePage(sector uint64, p []byte) error
}

// SlotFreeNotifier is the optional discard hint. Devices that keep
// per-slot allocations implement it to drop a slot's backing memory as
// soon as the slot holds no data anybody needs.
type SlotFreeNotifier interface {
	SlotFreeNotify(offset uint64)
}
