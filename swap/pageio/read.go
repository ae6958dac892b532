package pageio

import (
	"time"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/swap/blockio"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
	"github.com/zhukovaskychina/xswap-engine/swap/store"
)

// ReadPage starts the swap-in transfer for a page. The caller holds the
// page lock; completion sets uptodate and releases it. With synchronous
// set the call parks until the transfer finished, polling the queue for
// its own completion, and returns the transfer result. Otherwise a nil
// return only means the transfer started.
func (self *PageIO) ReadPage(pg *page.Page, synchronous bool) error {
	if !pg.Locked() {
		return errors.NotValidf("reading into an unlocked page")
	}
	if pg.Uptodate() {
		return errors.NotValidf("reading into a page already uptodate")
	}
	if !pg.SwapCache() && !synchronous {
		return errors.NotValidf("async read outside the swap cache")
	}

	// Submission time counts as memory stall; with the device congested
	// it is a significant share of the total.
	defer self.stats.RecordMemstall(time.Now())

	if self.cache != nil {
		if self.cache.Load(pg) {
			self.stats.CountCacheLoad()
			return nil
		}
		self.stats.CountCacheMiss()
	}

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
		return self.readFilePage(s, pg)
	}
	if !pg.IsCompound() {
		if dev, ok := s.Device().(blockio.PageRWDevice); ok && self.readDevicePage(dev, s, pg) {
			return nil
		}
	}
	return self.readQueuePage(s, pg, synchronous)
}

// readDevicePage is the synchronous single-page shortcut. On success the
// page is completed in place and the store gets its chance to drop the
// slot's backing; on failure the page is left untouched and locked for
// the queued path to retry.
func (self *PageIO) readDevicePage(dev blockio.PageRWDevice, s *store.BackingStore, pg *page.Page) bool {
	sector, err := s.SlotSector(pg.Slot().Offset)
	if err != nil {
		return false
	}
	if err := dev.ReadPage(sector, pg.Data()); err != nil {
		return false
	}
	pg.SetUptodate()
	pg.Unlock()
	if pg.TryLock() {
		self.slotFreeNotify(s, pg)
		pg.Unlock()
	}
	self.stats.CountSwapIn(1)
	return true
}

// readFilePage serves the page through the filesystem in the caller's
// context.
func (self *PageIO) readFilePage(s *store.BackingStore, pg *page.Page) error {
	off := s.SlotByteOffset(pg.Slot().Offset)
	if err := s.File().ReadPage(off, pg.Data()); err != nil {
		pg.ClearUptodate()
		pg.SetError()
		pg.Unlock()
		self.readErrLog.Errorf("Read error on swapfile (%d)", off)
		self.stats.CountReadFailure()
		return errors.Trace(err)
	}
	pg.SetUptodate()
	pg.Unlock()
	self.stats.CountSwapIn(pg.Pages())
	return nil
}

// readQueuePage hands the transfer to the store's request queue. A
// synchronous caller attaches a waiter and spins between polling the
// queue and sleeping until its own completion ran; completions of other
// transfers may run in its context along the way.
func (self *PageIO) readQueuePage(s *store.BackingStore, pg *page.Page, synchronous bool) error {
	req, err := self.buildRequest(s, pg, blockio.OpRead, self.endRead)
	if err != nil {
		pg.Unlock()
		return errors.Trace(err)
	}
	q := s.Queue()

	var w *blockio.Waiter
	if synchronous {
		w = blockio.NewWaiter()
		req.SetWaiter(w)
		req.Flags |= blockio.ReqHiPri
	}
	token := q.Submit(req)
	if !synchronous {
		return nil
	}

	// An empty poll means the kick was for somebody else's transfer;
	// sleep until the next one.
	for !w.Done() {
		if !q.Poll(token) {
			w.Sleep()
		}
	}
	return errors.Trace(w.Err())
}

// endRead runs when a queued read finishes, in the poller's context for
// high-priority transfers. On success the store may drop the slot's
// backing while the lock is still held, the way the device shortcut does
// it after retaking the lock.
func (self *PageIO) endRead(req *blockio.Request, err error) {
	pg := req.Page
	if err != nil {
		pg.SetError()
		pg.ClearUptodate()
		self.readErrLog.Errorf("Read-error on swap-device (%d:%d): %v",
			pg.Slot().Store, req.Sector, err)
		self.stats.CountReadFailure()
	} else {
		pg.SetUptodate()
		if s, serr := self.stores.StoreOf(pg); serr == nil {
			self.slotFreeNotify(s, pg)
		}
		self.stats.CountSwapIn(pg.Pages())
	}
	pg.Unlock()

	w := req.TakeWaiter()
	req.Release()
	if w != nil {
		w.Finish(err)
	}
}
