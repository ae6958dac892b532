package pageio

import (
	"github.com/zhukovaskychina/xswap-engine/swap/blockio"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
	"github.com/zhukovaskychina/xswap-engine/swap/store"
)

// slotFreeNotify gives the device a chance to drop a slot's backing
// after the content came back to memory. Slot freeing is lazy: the slot
// stays allocated for a likely re-swap, but once the page is redirtied
// in memory the device copy serves nobody. Runs only when this page is
// the single user of the slot; without a tracker every slot counts as
// singly referenced. The caller holds the page lock.
func (self *PageIO) slotFreeNotify(s *store.BackingStore, pg *page.Page) {
	// Synchronous reads may run against pages outside the swap cache.
	if !pg.SwapCache() {
		return
	}
	if !s.IsBlockDevice() || !s.SupportsSlotFreeNotify() {
		return
	}
	notifier, ok := s.Device().(blockio.SlotFreeNotifier)
	if !ok {
		return
	}
	if self.tracker != nil && self.tracker.SlotRefCount(pg.Slot()) != 1 {
		return
	}
	// The page is the freshest copy now. Redirty it so it cannot be
	// dropped without another write, then let the device forget.
	pg.SetDirty()
	notifier.SlotFreeNotify(pg.Slot().Offset)
}
