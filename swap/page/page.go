package page

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Slot identifies one page-sized location on a backing store. Offset is the
// page-granular slot number inside the store, not a byte offset. Offset 0 is
// the store header and never carries page data.
type Slot struct {
	Store  uint32
	Offset uint64
}

func (s Slot) String() string {
	return fmt.Sprintf("%d:%d", s.Store, s.Offset)
}

const (
	flagDirty uint32 = 1 << iota
	flagUptodate
	flagError
	flagWriteback
	flagReclaim
	flagSwapCache
)

// Page is a fixed-size frame of memory travelling through the swap I/O
// path. The owner locks the page before starting a transfer; completion
// handlers running on other goroutines update the state flags and release
// the lock, so all flags are manipulated atomically.
type Page struct {
	mu    sync.Mutex
	slot  Slot
	data  []byte
	pages int
	flags uint32
}

// NewPage allocates a single page frame of pageSize bytes.
func NewPage(pageSize int) *Page {
	return NewCompoundPage(pageSize, 1)
}

// NewCompoundPage allocates a frame covering pages consecutive slots.
// Compound frames are written in one request and occupy consecutive
// slots on the store.
func NewCompoundPage(pageSize, pages int) *Page {
	if pages < 1 {
		pages = 1
	}
	return &Page{
		data:  make([]byte, pageSize*pages),
		pages: pages,
	}
}

// Data returns the page frame contents.
func (p *Page) Data() []byte {
	return p.data
}

// Pages returns the number of slots this frame covers.
func (p *Page) Pages() int {
	return p.pages
}

// IsCompound reports whether the frame covers more than one slot.
func (p *Page) IsCompound() bool {
	return p.pages > 1
}

// Slot returns the slot assigned to this page.
func (p *Page) Slot() Slot {
	return p.slot
}

// SetSlot assigns the page its slot. Callers must hold the page lock.
func (p *Page) SetSlot(s Slot) {
	p.slot = s
}

// Lock acquires the page lock, blocking until it is free. The lock may be
// released by a different goroutine than the one that took it; completion
// handlers rely on that.
func (p *Page) Lock() {
	p.mu.Lock()
}

// TryLock acquires the page lock without blocking.
func (p *Page) TryLock() bool {
	return p.mu.TryLock()
}

// Unlock releases the page lock.
func (p *Page) Unlock() {
	p.mu.Unlock()
}

// Locked reports whether the page lock is currently held by someone.
func (p *Page) Locked() bool {
	if p.mu.TryLock() {
		p.mu.Unlock()
		return false
	}
	return true
}

func (p *Page) setFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&p.flags)
		if atomic.CompareAndSwapUint32(&p.flags, old, old|f) {
			return
		}
	}
}

func (p *Page) clearFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&p.flags)
		if atomic.CompareAndSwapUint32(&p.flags, old, old&^f) {
			return
		}
	}
}

func (p *Page) hasFlag(f uint32) bool {
	return atomic.LoadUint32(&p.flags)&f != 0
}

// SetDirty marks the page content newer than the store copy.
func (p *Page) SetDirty() { p.setFlag(flagDirty) }

// ClearDirty marks the page clean.
func (p *Page) ClearDirty() { p.clearFlag(flagDirty) }

// Dirty reports whether the page must be written back before reuse.
func (p *Page) Dirty() bool { return p.hasFlag(flagDirty) }

// SetUptodate marks the page content valid.
func (p *Page) SetUptodate() { p.setFlag(flagUptodate) }

// ClearUptodate invalidates the page content.
func (p *Page) ClearUptodate() { p.clearFlag(flagUptodate) }

// Uptodate reports whether the page holds valid content.
func (p *Page) Uptodate() bool { return p.hasFlag(flagUptodate) }

// SetError records a failed transfer on this page.
func (p *Page) SetError() { p.setFlag(flagError) }

// ClearError resets the transfer error state.
func (p *Page) ClearError() { p.clearFlag(flagError) }

// HasError reports whether the last transfer touching this page failed.
func (p *Page) HasError() bool { return p.hasFlag(flagError) }

// SetWriteback marks a write transfer in flight.
func (p *Page) SetWriteback() { p.setFlag(flagWriteback) }

// EndWriteback marks the write transfer finished.
func (p *Page) EndWriteback() { p.clearFlag(flagWriteback) }

// Writeback reports whether a write transfer is in flight.
func (p *Page) Writeback() bool { return p.hasFlag(flagWriteback) }

// SetReclaim marks the page as being written for immediate reclaim.
func (p *Page) SetReclaim() { p.setFlag(flagReclaim) }

// ClearReclaim drops the reclaim mark.
func (p *Page) ClearReclaim() { p.clearFlag(flagReclaim) }

// Reclaim reports whether the page is under reclaim writeback.
func (p *Page) Reclaim() bool { return p.hasFlag(flagReclaim) }

// SetSwapCache attaches the page to the swap cache.
func (p *Page) SetSwapCache() { p.setFlag(flagSwapCache) }

// ClearSwapCache detaches the page from the swap cache.
func (p *Page) ClearSwapCache() { p.clearFlag(flagSwapCache) }

// SwapCache reports whether the page belongs to the swap cache.
func (p *Page) SwapCache() bool { return p.hasFlag(flagSwapCache) }

// Reset clears all state so the frame can be reused for another slot.
// The page must not be locked and must have no transfer in flight.
func (p *Page) Reset() {
	p.slot = Slot{}
	atomic.StoreUint32(&p.flags, 0)
	for i := range p.data {
		p.data[i] = 0
	}
}
