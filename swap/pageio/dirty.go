package pageio

import (
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
)

// MarkDirty records that the in-memory content of a swapped page changed
// after its store copy was written. File-backed stores keep their own
// per-slot bookkeeping on top of the page flag, device-backed ones only
// need the flag.
func (self *PageIO) MarkDirty(pg *page.Page) error {
	s, err := self.stores.StoreOf(pg)
	if err != nil {
		return errors.Trace(err)
	}
	if s.IsFileBacked() {
		if !pg.SwapCache() {
			return errors.NotValidf("dirtying a swap-file page outside the swap cache")
		}
		s.File().MarkDirty(pg.Slot().Offset)
	}
	pg.SetDirty()
	return nil
}
