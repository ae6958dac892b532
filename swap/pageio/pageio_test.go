package pageio

import (
	"math/rand"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/zhukovaskychina/xswap-engine/swap/blockio"
	"github.com/zhukovaskychina/xswap-engine/swap/frontcache"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
	"github.com/zhukovaskychina/xswap-engine/swap/store"
)

const testPageSize = 4096

// fakeDevice wraps a RAM device with fault injection and artificial
// latency. It deliberately does not implement the single-page shortcut,
// transfers against it always go through the request queue.
type fakeDevice struct {
	ram        *blockio.RAMDevice
	delay      time.Duration
	failWrites int32
	failReads  int32
	syncCount  int32
}

func newFakeDevice(sectors uint64) *fakeDevice {
	return &fakeDevice{ram: blockio.NewRAMDevice(testPageSize, sectors)}
}

func (d *fakeDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if atomic.LoadInt32(&d.failReads) != 0 {
		return 0, errors.New("injected read fault")
	}
	return d.ram.ReadAt(p, off)
}

func (d *fakeDevice) WriteAt(p []byte, off int64) (int, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if atomic.LoadInt32(&d.failWrites) != 0 {
		return 0, errors.New("injected write fault")
	}
	return d.ram.WriteAt(p, off)
}

func (d *fakeDevice) Sync() error {
	atomic.AddInt32(&d.syncCount, 1)
	return nil
}

func (d *fakeDevice) Sectors() uint64 {
	return d.ram.Sectors()
}

func (d *fakeDevice) Close() error {
	return d.ram.Close()
}

type fakeTracker struct {
	mu       sync.Mutex
	release  bool
	refs     map[page.Slot]int
	released []page.Slot
}

func (tr *fakeTracker) TryReleaseSlot(pg *page.Page) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if !tr.release {
		return false
	}
	tr.released = append(tr.released, pg.Slot())
	return true
}

func (tr *fakeTracker) SlotRefCount(slot page.Slot) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if n, ok := tr.refs[slot]; ok {
		return n
	}
	return 1
}

type testEnv struct {
	registry *store.Registry
	store    *store.BackingStore
	io       *PageIO
}

func newRAMEnv(t *testing.T, discard bool, opts Options) (*testEnv, *blockio.RAMDevice) {
	t.Helper()
	r := store.NewRegistry(store.Options{PageSize: testPageSize, QueueDepth: 16, QueuePool: 32, QueueWorkers: 2})
	t.Cleanup(func() { r.Close() })

	dev := blockio.NewRAMDevice(testPageSize, 4096)
	s, err := r.AddBlockStore(store.BlockStoreSpec{Name: "ram0", Dev: dev, Discard: discard})
	assert.NoError(t, err)
	return &testEnv{registry: r, store: s, io: New(r, opts)}, dev
}

func newQueueEnv(t *testing.T, opts Options, pool int) (*testEnv, *fakeDevice) {
	t.Helper()
	r := store.NewRegistry(store.Options{PageSize: testPageSize, QueueDepth: 16, QueuePool: pool, QueueWorkers: 2})
	t.Cleanup(func() { r.Close() })

	dev := newFakeDevice(4096)
	s, err := r.AddBlockStore(store.BlockStoreSpec{Name: "dev0", Dev: dev})
	assert.NoError(t, err)
	return &testEnv{registry: r, store: s, io: New(r, opts)}, dev
}

func newFileEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	r := store.NewRegistry(store.Options{PageSize: testPageSize})
	t.Cleanup(func() { r.Close() })

	s, err := r.AddFileStore(store.FileStoreSpec{
		Name:     "file0",
		Path:     filepath.Join(t.TempDir(), "swap.img"),
		CreateMB: 1,
	})
	assert.NoError(t, err)
	return &testEnv{registry: r, store: s, io: New(r, opts)}
}

// page builds a locked swap-cache page filled with a byte pattern,
// the state a page arrives in from the reclaim side.
func (e *testEnv) page(slot uint64, fill byte) *page.Page {
	pg := page.NewPage(testPageSize)
	pg.SetSlot(page.Slot{Store: e.store.ID(), Offset: slot})
	data := pg.Data()
	for i := range data {
		data[i] = fill
	}
	pg.SetSwapCache()
	pg.Lock()
	return pg
}

func randomData(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(7)).Read(data)
	return data
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	if !eventually(cond) {
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestWritePreconditions(t *testing.T) {
	env, _ := newRAMEnv(t, false, Options{})

	pg := env.page(1, 0xaa)
	pg.Unlock()
	assert.True(t, errors.IsNotValid(env.io.WritePage(pg, WriteControl{})))

	pg = env.page(2, 0xaa)
	pg.ClearSwapCache()
	assert.True(t, errors.IsNotValid(env.io.WritePage(pg, WriteControl{})))
	assert.False(t, pg.Locked(), "a rejected write still hands the lock back")

	pg = env.page(0, 0xaa) // the header slot
	assert.True(t, errors.IsNotValid(env.io.WritePage(pg, WriteControl{})))
	assert.False(t, pg.Locked())

	pg = env.page(env.store.MaxSlots()+5, 0xaa)
	assert.True(t, errors.IsNotValid(env.io.WritePage(pg, WriteControl{})))

	pg = env.page(3, 0xaa)
	pg.SetSlot(page.Slot{Store: 999, Offset: 3})
	assert.True(t, errors.IsNotFound(env.io.WritePage(pg, WriteControl{})))
	assert.False(t, pg.Locked())
}

func TestReadPreconditions(t *testing.T) {
	env, _ := newRAMEnv(t, false, Options{})

	pg := env.page(1, 0)
	pg.Unlock()
	assert.True(t, errors.IsNotValid(env.io.ReadPage(pg, false)))

	pg = env.page(2, 0)
	pg.SetUptodate()
	assert.True(t, errors.IsNotValid(env.io.ReadPage(pg, false)))

	pg = env.page(3, 0)
	pg.ClearSwapCache()
	assert.True(t, errors.IsNotValid(env.io.ReadPage(pg, false)),
		"async reads need the swap cache")
}

func TestWriteReleasesFreeableSlot(t *testing.T) {
	cache, err := frontcache.NewCompressedCache("snappy", testPageSize, 1<<20)
	assert.NoError(t, err)
	tr := &fakeTracker{release: true}
	env, dev := newRAMEnv(t, false, Options{Tracker: tr, Cache: cache})

	pg := env.page(7, 0x7e)
	// the cache still holds an older copy for the slot
	assert.True(t, cache.StoreData(pg.Slot(), pg.Data()))

	assert.NoError(t, env.io.WritePage(pg, WriteControl{}))
	assert.False(t, pg.Locked())
	assert.False(t, pg.Writeback())
	assert.Equal(t, 0, dev.PagesStored(), "a released slot is never written")
	assert.Equal(t, []page.Slot{pg.Slot()}, tr.released)
	assert.Equal(t, 0, cache.Len(), "the cache copy dies with the slot")
}

func TestMarkDirtyOnFile(t *testing.T) {
	env := newFileEnv(t, Options{})

	pg := env.page(33, 0)
	pg.Unlock()
	assert.NoError(t, env.io.MarkDirty(pg))
	assert.True(t, pg.Dirty())
	assert.True(t, env.store.File().IsDirty(33))

	bad := env.page(34, 0)
	bad.Unlock()
	bad.ClearSwapCache()
	assert.True(t, errors.IsNotValid(env.io.MarkDirty(bad)))
	assert.False(t, env.store.File().IsDirty(34))
}

func TestMarkDirtyOnDevice(t *testing.T) {
	env, _ := newRAMEnv(t, false, Options{})

	pg := env.page(2, 0)
	pg.Unlock()
	assert.NoError(t, env.io.MarkDirty(pg))
	assert.True(t, pg.Dirty())
}

// overlapDevice counts transfers whose sector ranges are active at the
// same time. Per page the swap path must never produce such a pair.
type overlapDevice struct {
	ram      *blockio.RAMDevice
	mu       sync.Mutex
	inflight map[uint64]int
	overlaps int32
}

func (d *overlapDevice) enter(off int64) uint64 {
	sector := uint64(off) / blockio.SectorSize
	d.mu.Lock()
	d.inflight[sector]++
	if d.inflight[sector] > 1 {
		atomic.AddInt32(&d.overlaps, 1)
	}
	d.mu.Unlock()
	return sector
}

func (d *overlapDevice) leave(sector uint64) {
	d.mu.Lock()
	d.inflight[sector]--
	d.mu.Unlock()
}

func (d *overlapDevice) ReadAt(p []byte, off int64) (int, error) {
	sector := d.enter(off)
	defer d.leave(sector)
	time.Sleep(time.Millisecond)
	return d.ram.ReadAt(p, off)
}

func (d *overlapDevice) WriteAt(p []byte, off int64) (int, error) {
	sector := d.enter(off)
	defer d.leave(sector)
	time.Sleep(time.Millisecond)
	return d.ram.WriteAt(p, off)
}

func (d *overlapDevice) Sync() error     { return nil }
func (d *overlapDevice) Sectors() uint64 { return d.ram.Sectors() }
func (d *overlapDevice) Close() error    { return d.ram.Close() }

// Drives reads and writes of one page from many goroutines the way
// reclaim and fault handling race on a hot page. The page lock and the
// writeback bracket are the only serialization; the device observes
// whether they hold up.
func TestOnePageTransfersNeverOverlap(t *testing.T) {
	r := store.NewRegistry(store.Options{PageSize: testPageSize, QueueDepth: 16, QueuePool: 64, QueueWorkers: 4})
	t.Cleanup(func() { r.Close() })

	dev := &overlapDevice{ram: blockio.NewRAMDevice(testPageSize, 4096), inflight: map[uint64]int{}}
	s, err := r.AddBlockStore(store.BlockStoreSpec{Name: "odev", Dev: dev})
	assert.NoError(t, err)
	pio := New(r, Options{})

	pg := page.NewPage(testPageSize)
	pg.SetSlot(page.Slot{Store: s.ID(), Offset: 3})
	pg.SetSwapCache()

	const workers = 6
	const iters = 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				pg.Lock()
				if pg.Writeback() {
					// the reclaim side skips pages still under writeback
					pg.Unlock()
					continue
				}
				if (w+i)%2 == 0 {
					_ = pio.WritePage(pg, WriteControl{})
				} else {
					pg.ClearUptodate()
					_ = pio.ReadPage(pg, true)
				}
			}
		}(w)
	}
	wg.Wait()
	waitFor(t, "the last transfer", func() bool { return !pg.Writeback() })
	assert.Equal(t, int32(0), atomic.LoadInt32(&dev.overlaps),
		"page lock plus writeback bracket must serialize transfers")
}
