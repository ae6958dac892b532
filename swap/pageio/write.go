package pageio

import (
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/swap/blockio"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
	"github.com/zhukovaskychina/xswap-engine/swap/store"
)

// WritePage starts writeback for a page chosen for swap-out. The page
// arrives locked; whichever path the content takes, the lock is released
// and the writeback flag brackets the transfer. A nil return means the
// transfer was started (or, on the synchronous paths, finished), not
// that the content is durable.
func (self *PageIO) WritePage(pg *page.Page, wc WriteControl) error {
	if !pg.Locked() {
		return errors.NotValidf("writing an unlocked page")
	}
	if wc.ForReclaim {
		pg.SetReclaim()
	}

	// When this mapping holds the only reference the content is better
	// kept in memory and the slot released instead of written.
	if self.tracker != nil && self.tracker.TryReleaseSlot(pg) {
		if self.cache != nil {
			self.cache.Invalidate(pg.Slot())
		}
		pg.Unlock()
		return nil
	}

	if !pg.SwapCache() {
		pg.Unlock()
		return errors.NotValidf("writing a page outside the swap cache")
	}

	if self.cache != nil {
		if self.cache.Store(pg) {
			self.stats.CountCacheStore()
			pg.SetWriteback()
			pg.Unlock()
			pg.EndWriteback()
			return nil
		}
		self.stats.CountCacheDecline()
	}
	return self.writePage(pg, wc)
}

// writePage routes the transfer to the page's store once the shortcuts
// have passed on it.
func (self *PageIO) writePage(pg *page.Page, wc WriteControl) error {
	s, err := self.stores.StoreOf(pg)
	if err != nil {
		pg.Unlock()
		return errors.Trace(err)
	}
	if err := s.CheckSlot(pg.Slot().Offset); err != nil {
		pg.Unlock()
		return errors.Trace(err)
	}

	if s.IsFileBacked() {
		return self.writeFilePage(s, pg, wc)
	}
	if !pg.IsCompound() {
		if dev, ok := s.Device().(blockio.PageRWDevice); ok && self.writeDevicePage(dev, s, pg) {
			return nil
		}
	}
	return self.writeQueuePage(s, pg, wc)
}

// writeDevicePage is the synchronous single-page shortcut. The writeback
// bracket opens before the device call; on failure it closes again and
// the page stays locked for the queued path to take over.
func (self *PageIO) writeDevicePage(dev blockio.PageRWDevice, s *store.BackingStore, pg *page.Page) bool {
	sector, err := s.SlotSector(pg.Slot().Offset)
	if err != nil {
		return false
	}
	pg.SetWriteback()
	if err := dev.WritePage(sector, pg.Data()); err != nil {
		pg.EndWriteback()
		return false
	}
	self.stats.CountSwapOut(1)
	pg.EndWriteback()
	pg.Unlock()
	return true
}

// writeQueuePage hands the transfer to the store's request queue. The
// lock is dropped once the request is filled in; from there the
// completion handler owns the page state.
func (self *PageIO) writeQueuePage(s *store.BackingStore, pg *page.Page, wc WriteControl) error {
	req, err := self.buildRequest(s, pg, blockio.OpWrite, self.endWrite)
	if err != nil {
		// Keep the content dirty, writeback will come around again.
		if errors.Cause(err) == ErrNoRequest {
			pg.SetDirty()
		}
		pg.Unlock()
		return errors.Trace(err)
	}
	if wc.Sync {
		req.Flags |= blockio.ReqSync
	}

	pg.SetWriteback()
	pg.Unlock()
	s.Queue().Submit(req)
	return nil
}

// endWrite runs when a queued write finishes. A failed write redirties
// the page so the content is not lost, raises the error flag and drops
// the reclaim hint; the store copy is bad and the page must not leave
// memory on its account.
func (self *PageIO) endWrite(req *blockio.Request, err error) {
	pg := req.Page
	if err != nil {
		pg.SetError()
		pg.SetDirty()
		self.writeErrLog.Errorf("Write-error on swap-device (%d:%d): %v",
			pg.Slot().Store, req.Sector, err)
		pg.ClearReclaim()
		self.stats.CountWriteFailure()
	} else {
		self.stats.CountSwapOut(pg.Pages())
		if pg.IsCompound() {
			self.stats.CountHugeSwapOut()
		}
	}
	pg.EndWriteback()
	req.Release()
}

// writeFilePage sends the page through the filesystem with one direct
// write in the caller's context. The lock drops before the transfer, the
// same window the queued path has.
func (self *PageIO) writeFilePage(s *store.BackingStore, pg *page.Page, wc WriteControl) error {
	f := s.File()
	off := s.SlotByteOffset(pg.Slot().Offset)

	pg.SetWriteback()
	pg.Unlock()

	n, err := f.DirectWrite(off, pg.Data())
	if err == nil && n == len(pg.Data()) && wc.Sync {
		err = f.Sync()
	}
	if err != nil || n != len(pg.Data()) {
		// Usually a transient shortage on the filesystem side. Redirty
		// and retry later; no error flag, the condition is not final
		// the way a device error is.
		self.MarkDirty(pg)
		pg.ClearReclaim()
		self.writeErrLog.Errorf("Write error on dio swapfile (%d)", off)
		self.stats.CountWriteFailure()
		pg.EndWriteback()
		if err == nil {
			err = errors.Errorf("short write of %d bytes at %d", n, off)
		}
		return errors.Trace(err)
	}

	f.ClearDirty(pg.Slot().Offset)
	self.stats.CountSwapOut(pg.Pages())
	if pg.IsCompound() {
		self.stats.CountHugeSwapOut()
	}
	pg.EndWriteback()
	return nil
}
