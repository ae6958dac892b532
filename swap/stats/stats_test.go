package stats

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/zhukovaskychina/xswap-engine/swap/frontcache"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.CountSwapOut(1)
	c.CountSwapOut(8)
	c.CountHugeSwapOut()
	c.CountSwapIn(1)
	c.CountWriteFailure()
	c.CountReadFailure()
	c.CountCacheStore()
	c.CountCacheLoad()
	c.CountCacheDecline()
	c.CountCacheMiss()
	c.CountRequestAllocFailure()

	s := c.Snapshot()
	assert.Equal(t, int64(9), s.PagesSwappedOut)
	assert.Equal(t, int64(1), s.HugePagesSwappedOut)
	assert.Equal(t, int64(1), s.PagesSwappedIn)
	assert.Equal(t, int64(1), s.WriteFailures)
	assert.Equal(t, int64(1), s.ReadFailures)
	assert.Equal(t, int64(1), s.CacheStores)
	assert.Equal(t, int64(1), s.CacheLoads)
	assert.Equal(t, int64(1), s.CacheDeclines)
	assert.Equal(t, int64(1), s.CacheMisses)
	assert.Equal(t, int64(1), s.RequestAllocFailures)
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.CountSwapOut(1)
				c.CountSwapIn(1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, int64(8000), s.PagesSwappedOut)
	assert.Equal(t, int64(8000), s.PagesSwappedIn)
}

func TestRecordMemstall(t *testing.T) {
	c := NewCollector()

	func() {
		defer c.RecordMemstall(time.Now())
		time.Sleep(20 * time.Millisecond)
	}()

	s := c.Snapshot()
	assert.Equal(t, int64(1), s.MemstallEvents)
	assert.GreaterOrEqual(t, s.MemstallTime, 20*time.Millisecond)
}

func TestPrometheusCollector(t *testing.T) {
	c := NewCollector()
	c.CountSwapOut(3)
	c.CountWriteFailure()

	pc := NewPrometheusCollector(c)
	assert.Equal(t, 12, testutil.CollectAndCount(pc))

	expected := `
		# HELP xswap_pages_swapped_out_total Pages written to a backing store or taken by the front cache.
		# TYPE xswap_pages_swapped_out_total counter
		xswap_pages_swapped_out_total 3
		# HELP xswap_write_failures_total Page writes that completed with an error.
		# TYPE xswap_write_failures_total counter
		xswap_write_failures_total 1
	`
	assert.NoError(t, testutil.CollectAndCompare(pc, strings.NewReader(expected),
		"xswap_pages_swapped_out_total", "xswap_write_failures_total"))
}

func TestCacheCollector(t *testing.T) {
	cache, err := frontcache.NewCompressedCache("snappy", 4096, 1<<20)
	assert.NoError(t, err)

	pc := NewCacheCollector(cache)
	assert.Equal(t, 8, testutil.CollectAndCount(pc))

	expected := `
		# HELP xswap_cache_server_capacity_bytes Byte budget for compressed content.
		# TYPE xswap_cache_server_capacity_bytes gauge
		xswap_cache_server_capacity_bytes 1.048576e+06
	`
	assert.NoError(t, testutil.CollectAndCompare(pc, strings.NewReader(expected),
		"xswap_cache_server_capacity_bytes"))
}
