package frontcache

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xswap-engine/logger"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
	"github.com/zhukovaskychina/xswap-engine/util"
)

type entry struct {
	data     []byte
	checksum uint64
}

// CacheStats is a point-in-time snapshot of the cache counters.
type CacheStats struct {
	Stores   int64
	Declines int64
	Hits     int64
	Misses   int64
	Drops    int64
}

// CompressedCache keeps swapped-out pages compressed in memory. A page
// it accepts never reaches the backing store, so entries leave only
// through overwrite, Invalidate or a failed integrity check, never by
// eviction behind the caller's back. When the budget is exhausted new
// pages are declined and written through instead.
type CompressedCache struct {
	mu       sync.Mutex
	codec    Codec
	pageSize int
	capacity int64
	used     int64
	entries  map[page.Slot]entry

	stores   int64
	declines int64
	hits     int64
	misses   int64
	drops    int64
}

// NewCompressedCache builds a cache with the named codec and a byte
// budget for compressed content.
func NewCompressedCache(codecName string, pageSize int, capacity int64) (*CompressedCache, error) {
	codec, err := NewCodec(codecName)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if pageSize <= 0 {
		return nil, errors.Errorf("page size %d not positive", pageSize)
	}
	if capacity <= 0 {
		return nil, errors.Errorf("cache capacity %d not positive", capacity)
	}
	return &CompressedCache{
		codec:    codec,
		pageSize: pageSize,
		capacity: capacity,
		entries:  make(map[page.Slot]entry),
	}, nil
}

// StoreData offers raw page content for slot. The previous entry for the
// slot is always dropped first, a decline can never leave stale content
// behind.
func (c *CompressedCache) StoreData(slot page.Slot, raw []byte) bool {
	if len(raw) != c.pageSize {
		atomic.AddInt64(&c.declines, 1)
		return false
	}
	comp, err := c.codec.Compress(raw)

	c.mu.Lock()
	if old, ok := c.entries[slot]; ok {
		c.used -= int64(len(old.data))
		delete(c.entries, slot)
	}
	if err != nil || c.used+int64(len(comp)) > c.capacity {
		c.mu.Unlock()
		atomic.AddInt64(&c.declines, 1)
		return false
	}
	c.entries[slot] = entry{data: comp, checksum: util.HashCode(raw)}
	c.used += int64(len(comp))
	c.mu.Unlock()

	atomic.AddInt64(&c.stores, 1)
	return true
}

// LoadData fills dst with the content held for slot. An entry that fails
// decompression or its integrity check is dropped and reads as a miss,
// the caller falls back to the backing store.
func (c *CompressedCache) LoadData(slot page.Slot, dst []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[slot]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return false
	}
	raw, err := c.codec.Decompress(ent.data, c.pageSize)
	if err == nil && util.HashCode(raw) != ent.checksum {
		err = errors.New("checksum mismatch")
	}
	if err != nil {
		logger.Errorf("Cache entry for %s is damaged, dropping it: %v", slot.String(), err)
		c.used -= int64(len(ent.data))
		delete(c.entries, slot)
		atomic.AddInt64(&c.drops, 1)
		atomic.AddInt64(&c.misses, 1)
		return false
	}
	copy(dst, raw)
	atomic.AddInt64(&c.hits, 1)
	return true
}

// Store implements FrontCache. Compound pages always go to the store.
func (c *CompressedCache) Store(pg *page.Page) bool {
	if pg.IsCompound() {
		atomic.AddInt64(&c.declines, 1)
		return false
	}
	return c.StoreData(pg.Slot(), pg.Data())
}

// Load implements FrontCache. On a hit the cache completes the page the
// way a finished device read would.
func (c *CompressedCache) Load(pg *page.Page) bool {
	if pg.IsCompound() {
		atomic.AddInt64(&c.misses, 1)
		return false
	}
	if !c.LoadData(pg.Slot(), pg.Data()) {
		return false
	}
	pg.SetUptodate()
	pg.Unlock()
	return true
}

// Invalidate implements FrontCache.
func (c *CompressedCache) Invalidate(slot page.Slot) {
	c.mu.Lock()
	if ent, ok := c.entries[slot]; ok {
		c.used -= int64(len(ent.data))
		delete(c.entries, slot)
		atomic.AddInt64(&c.drops, 1)
	}
	c.mu.Unlock()
}

// Len returns the number of cached pages.
func (c *CompressedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Used returns the compressed bytes currently held.
func (c *CompressedCache) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *CompressedCache) Capacity() int64 {
	return c.capacity
}

func (c *CompressedCache) CodecName() string {
	return c.codec.Name()
}

// Stats returns a snapshot of the cache counters.
func (c *CompressedCache) Stats() CacheStats {
	return CacheStats{
		Stores:   atomic.LoadInt64(&c.stores),
		Declines: atomic.LoadInt64(&c.declines),
		Hits:     atomic.LoadInt64(&c.hits),
		Misses:   atomic.LoadInt64(&c.misses),
		Drops:    atomic.LoadInt64(&c.drops),
	}
}
