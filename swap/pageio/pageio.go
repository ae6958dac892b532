// Package pageio moves page frames between memory and the backing
// stores. 负责页面换入换出的完整生命周期: a page comes in locked, every
// path releases the lock and keeps the uptodate, dirty, error and
// writeback flags truthful, whether the content went through the front
// cache, a swap file or a block device queue.
package pageio

import (
	"time"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/logger"
	"github.com/zhukovaskychina/xswap-engine/swap/frontcache"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
	"github.com/zhukovaskychina/xswap-engine/swap/stats"
	"github.com/zhukovaskychina/xswap-engine/swap/store"
)

// ErrNoRequest reports that a transfer could not start because the
// store's request pool was empty. The page keeps its content and the
// caller retries later.
var ErrNoRequest = errors.New("no free transfer request")

// SlotTracker is the slot allocation view the I/O path consults. It is
// optional; without one every slot counts as singly referenced and no
// slot is ever released early.
type SlotTracker interface {
	// TryReleaseSlot drops the page's slot when this mapping holds the
	// only reference, reporting whether it did. A released slot means
	// the content stays in memory and nothing has to be written.
	TryReleaseSlot(pg *page.Page) bool
	// SlotRefCount returns the number of users of slot.
	SlotRefCount(slot page.Slot) int
}

// WriteControl steers one writeback.
type WriteControl struct {
	// Sync makes the transfer durable before its completion runs.
	Sync bool
	// ForReclaim marks writeback driven by memory pressure. The page
	// carries the reclaim hint through the transfer; a failed write
	// clears it again.
	ForReclaim bool
}

// Options carries the optional collaborators of a PageIO.
type Options struct {
	Cache   frontcache.FrontCache
	Tracker SlotTracker
	Stats   *stats.Collector
}

// PageIO is the entry point for swap transfers against a registry of
// activated stores.
type PageIO struct {
	stores  *store.Registry
	cache   frontcache.FrontCache
	tracker SlotTracker
	stats   *stats.Collector

	writeErrLog *logger.RateLimit
	readErrLog  *logger.RateLimit
}

func New(stores *store.Registry, opts Options) *PageIO {
	st := opts.Stats
	if st == nil {
		st = stats.NewCollector()
	}
	return &PageIO{
		stores:      stores,
		cache:       opts.Cache,
		tracker:     opts.Tracker,
		stats:       st,
		writeErrLog: logger.NewRateLimit(5*time.Second, 10),
		readErrLog:  logger.NewRateLimit(5*time.Second, 10),
	}
}

// Stats returns the transfer counters.
func (self *PageIO) Stats() *stats.Collector {
	return self.stats
}
