package stats

import (
	"sync/atomic"
	"time"
)

// Collector aggregates transfer accounting for the swap I/O path. All
// methods are safe for concurrent use. Transfers are counted when they
// complete, a failed write never shows up as a swapped-out page.
type Collector struct {
	pagesSwappedOut     int64
	pagesSwappedIn      int64
	hugePagesSwappedOut int64

	writeFailures int64
	readFailures  int64

	cacheStores   int64
	cacheLoads    int64
	cacheDeclines int64
	cacheMisses   int64

	requestAllocFailures int64

	memstallNanos  int64
	memstallEvents int64
}

func NewCollector() *Collector {
	return &Collector{}
}

// CountSwapOut accounts pages written out in one completed transfer.
func (c *Collector) CountSwapOut(pages int) {
	atomic.AddInt64(&c.pagesSwappedOut, int64(pages))
}

// CountHugeSwapOut accounts a completed compound page write on top of
// its per-page accounting.
func (c *Collector) CountHugeSwapOut() {
	atomic.AddInt64(&c.hugePagesSwappedOut, 1)
}

// CountSwapIn accounts pages read back in one completed transfer.
func (c *Collector) CountSwapIn(pages int) {
	atomic.AddInt64(&c.pagesSwappedIn, int64(pages))
}

func (c *Collector) CountWriteFailure() {
	atomic.AddInt64(&c.writeFailures, 1)
}

func (c *Collector) CountReadFailure() {
	atomic.AddInt64(&c.readFailures, 1)
}

// CountCacheStore accounts a page the front cache took ownership of.
func (c *Collector) CountCacheStore() {
	atomic.AddInt64(&c.cacheStores, 1)
}

// CountCacheLoad accounts a page served from the front cache.
func (c *Collector) CountCacheLoad() {
	atomic.AddInt64(&c.cacheLoads, 1)
}

func (c *Collector) CountCacheDecline() {
	atomic.AddInt64(&c.cacheDeclines, 1)
}

func (c *Collector) CountCacheMiss() {
	atomic.AddInt64(&c.cacheMisses, 1)
}

// CountRequestAllocFailure accounts a transfer deferred because the
// request pool was empty.
func (c *Collector) CountRequestAllocFailure() {
	atomic.AddInt64(&c.requestAllocFailures, 1)
}

// RecordMemstall accounts a stall that began at start. Meant to be
// deferred around a transfer the caller has to wait for:
//
//	defer c.RecordMemstall(time.Now())
func (c *Collector) RecordMemstall(start time.Time) {
	atomic.AddInt64(&c.memstallNanos, int64(time.Since(start)))
	atomic.AddInt64(&c.memstallEvents, 1)
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	PagesSwappedOut     int64
	PagesSwappedIn      int64
	HugePagesSwappedOut int64

	WriteFailures int64
	ReadFailures  int64

	CacheStores   int64
	CacheLoads    int64
	CacheDeclines int64
	CacheMisses   int64

	RequestAllocFailures int64

	MemstallTime   time.Duration
	MemstallEvents int64
}

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		PagesSwappedOut:      atomic.LoadInt64(&c.pagesSwappedOut),
		PagesSwappedIn:       atomic.LoadInt64(&c.pagesSwappedIn),
		HugePagesSwappedOut:  atomic.LoadInt64(&c.hugePagesSwappedOut),
		WriteFailures:        atomic.LoadInt64(&c.writeFailures),
		ReadFailures:         atomic.LoadInt64(&c.readFailures),
		CacheStores:          atomic.LoadInt64(&c.cacheStores),
		CacheLoads:           atomic.LoadInt64(&c.cacheLoads),
		CacheDeclines:        atomic.LoadInt64(&c.cacheDeclines),
		CacheMisses:          atomic.LoadInt64(&c.cacheMisses),
		RequestAllocFailures: atomic.LoadInt64(&c.requestAllocFailures),
		MemstallTime:         time.Duration(atomic.LoadInt64(&c.memstallNanos)),
		MemstallEvents:       atomic.LoadInt64(&c.memstallEvents),
	}
}
