package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zhukovaskychina/xswap-engine/swap/frontcache"
)

// pathCollector exposes a Collector to prometheus.
type pathCollector struct {
	c *Collector

	swapOut       *prometheus.Desc
	swapIn        *prometheus.Desc
	hugeSwapOut   *prometheus.Desc
	writeFailures *prometheus.Desc
	readFailures  *prometheus.Desc
	cacheStores   *prometheus.Desc
	cacheLoads    *prometheus.Desc
	cacheDeclines *prometheus.Desc
	cacheMisses   *prometheus.Desc
	allocFailures *prometheus.Desc
	memstallTime  *prometheus.Desc
	memstallCount *prometheus.Desc
}

// NewPrometheusCollector wraps c for registration with a prometheus
// registry.
func NewPrometheusCollector(c *Collector) prometheus.Collector {
	return &pathCollector{
		c: c,
		swapOut: prometheus.NewDesc("xswap_pages_swapped_out_total",
			"Pages written to a backing store or taken by the front cache.", nil, nil),
		swapIn: prometheus.NewDesc("xswap_pages_swapped_in_total",
			"Pages read back from a backing store or the front cache.", nil, nil),
		hugeSwapOut: prometheus.NewDesc("xswap_huge_pages_swapped_out_total",
			"Compound pages written out in one transfer.", nil, nil),
		writeFailures: prometheus.NewDesc("xswap_write_failures_total",
			"Page writes that completed with an error.", nil, nil),
		readFailures: prometheus.NewDesc("xswap_read_failures_total",
			"Page reads that completed with an error.", nil, nil),
		cacheStores: prometheus.NewDesc("xswap_cache_stores_total",
			"Outgoing pages the front cache took ownership of.", nil, nil),
		cacheLoads: prometheus.NewDesc("xswap_cache_loads_total",
			"Incoming pages served by the front cache.", nil, nil),
		cacheDeclines: prometheus.NewDesc("xswap_cache_declines_total",
			"Outgoing pages the front cache refused.", nil, nil),
		cacheMisses: prometheus.NewDesc("xswap_cache_misses_total",
			"Incoming pages the front cache did not hold.", nil, nil),
		allocFailures: prometheus.NewDesc("xswap_request_alloc_failures_total",
			"Transfers deferred because the request pool was empty.", nil, nil),
		memstallTime: prometheus.NewDesc("xswap_memstall_seconds_total",
			"Time spent stalled on swap transfers.", nil, nil),
		memstallCount: prometheus.NewDesc("xswap_memstall_events_total",
			"Transfers the caller had to stall on.", nil, nil),
	}
}

func (p *pathCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.swapOut
	ch <- p.swapIn
	ch <- p.hugeSwapOut
	ch <- p.writeFailures
	ch <- p.readFailures
	ch <- p.cacheStores
	ch <- p.cacheLoads
	ch <- p.cacheDeclines
	ch <- p.cacheMisses
	ch <- p.allocFailures
	ch <- p.memstallTime
	ch <- p.memstallCount
}

func (p *pathCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.c.Snapshot()
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(p.swapOut, s.PagesSwappedOut)
	counter(p.swapIn, s.PagesSwappedIn)
	counter(p.hugeSwapOut, s.HugePagesSwappedOut)
	counter(p.writeFailures, s.WriteFailures)
	counter(p.readFailures, s.ReadFailures)
	counter(p.cacheStores, s.CacheStores)
	counter(p.cacheLoads, s.CacheLoads)
	counter(p.cacheDeclines, s.CacheDeclines)
	counter(p.cacheMisses, s.CacheMisses)
	counter(p.allocFailures, s.RequestAllocFailures)
	ch <- prometheus.MustNewConstMetric(p.memstallTime, prometheus.CounterValue,
		s.MemstallTime.Seconds())
	counter(p.memstallCount, s.MemstallEvents)
}

// cacheCollector exposes a cache server's CompressedCache to prometheus.
type cacheCollector struct {
	cache *frontcache.CompressedCache

	used     *prometheus.Desc
	capacity *prometheus.Desc
	entries  *prometheus.Desc
	stores   *prometheus.Desc
	declines *prometheus.Desc
	hits     *prometheus.Desc
	misses   *prometheus.Desc
	drops    *prometheus.Desc
}

// NewCacheCollector wraps cache for registration with a prometheus
// registry on the cache server side.
func NewCacheCollector(cache *frontcache.CompressedCache) prometheus.Collector {
	return &cacheCollector{
		cache: cache,
		used: prometheus.NewDesc("xswap_cache_server_used_bytes",
			"Compressed bytes currently held.", nil, nil),
		capacity: prometheus.NewDesc("xswap_cache_server_capacity_bytes",
			"Byte budget for compressed content.", nil, nil),
		entries: prometheus.NewDesc("xswap_cache_server_entries",
			"Pages currently held.", nil, nil),
		stores: prometheus.NewDesc("xswap_cache_server_stores_total",
			"Pages accepted.", nil, nil),
		declines: prometheus.NewDesc("xswap_cache_server_declines_total",
			"Pages refused for budget or compressibility.", nil, nil),
		hits: prometheus.NewDesc("xswap_cache_server_hits_total",
			"Loads served.", nil, nil),
		misses: prometheus.NewDesc("xswap_cache_server_misses_total",
			"Loads that found nothing.", nil, nil),
		drops: prometheus.NewDesc("xswap_cache_server_drops_total",
			"Entries removed by invalidation or damage.", nil, nil),
	}
}

func (p *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.used
	ch <- p.capacity
	ch <- p.entries
	ch <- p.stores
	ch <- p.declines
	ch <- p.hits
	ch <- p.misses
	ch <- p.drops
}

func (p *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	st := p.cache.Stats()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge(p.used, float64(p.cache.Used()))
	gauge(p.capacity, float64(p.cache.Capacity()))
	gauge(p.entries, float64(p.cache.Len()))
	counter(p.stores, st.Stores)
	counter(p.declines, st.Declines)
	counter(p.hits, st.Hits)
	counter(p.misses, st.Misses)
	counter(p.drops, st.Drops)
}
