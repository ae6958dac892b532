package store

import (
	"math/bits"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/conf"
	"github.com/zhukovaskychina/xswap-engine/logger"
	"github.com/zhukovaskychina/xswap-engine/swap/blockio"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
	"github.com/zhukovaskychina/xswap-engine/util"
)

// Options sets registry-wide geometry and queue sizing.
type Options struct {
	PageSize     int
	QueueDepth   int
	QueuePool    int
	QueueWorkers int
}

// Registry owns the activated backing stores and hands out store lookups
// to the I/O paths.
type Registry struct {
	mu     sync.RWMutex
	stores map[uint32]*BackingStore
	byName map[string]uint32
	nextID uint32

	pageSize     int
	pageShift    uint
	queueDepth   int
	queuePool    int
	queueWorkers int
}

// FileStoreSpec describes a file-backed store to activate.
type FileStoreSpec struct {
	Name     string
	Path     string
	Priority int
	Label    string
	// CreateMB formats a missing file with this size. Zero means the
	// file must already exist.
	CreateMB int64
	// Mapper overrides the block mapper. Nil picks FIBMAP when
	// UseFibmap is set and an identity layout otherwise.
	Mapper    BlockMapper
	UseFibmap bool
	// BlockBits overrides the filesystem block size (log2). Zero means
	// page-sized blocks.
	BlockBits uint
	// MaxSlots caps the usable slots below what the file provides.
	MaxSlots uint64
}

// BlockStoreSpec describes a device-backed store to activate.
type BlockStoreSpec struct {
	Name     string
	Dev      blockio.Device
	Priority int
	// Discard forwards freed slots to the device when it listens.
	Discard bool
}

func NewRegistry(opts Options) *Registry {
	if opts.PageSize <= 0 {
		opts.PageSize = 4096
	}
	return &Registry{
		stores:       make(map[uint32]*BackingStore),
		byName:       make(map[string]uint32),
		pageSize:     opts.PageSize,
		pageShift:    uint(bits.TrailingZeros(uint(opts.PageSize))),
		queueDepth:   opts.QueueDepth,
		queuePool:    opts.QueuePool,
		queueWorkers: opts.QueueWorkers,
	}
}

func (r *Registry) PageSize() int {
	return r.pageSize
}

// AddFileStore opens, verifies and activates a file-backed store.
// Activation takes an exclusive flock on the swap file so two processes
// cannot drive the same store.
func (r *Registry) AddFileStore(spec FileStoreSpec) (*BackingStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Name == "" {
		return nil, errors.NotValidf("file store without name")
	}
	if _, ok := r.byName[spec.Name]; ok {
		return nil, errors.AlreadyExistsf("store %q", spec.Name)
	}

	if !util.PathExists(spec.Path) {
		if spec.CreateMB <= 0 {
			return nil, errors.NotFoundf("swap file %s", spec.Path)
		}
		if _, err := FormatStore(spec.Path, spec.CreateMB<<20, r.pageSize, spec.Label); err != nil {
			return nil, errors.Trace(err)
		}
		logger.Infof("Formatted swap file %s (%d MB)", spec.Path, spec.CreateMB)
	}

	fileLock := flock.New(spec.Path)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, errors.Annotatef(err, "lock swap file %s", spec.Path)
	}
	if !locked {
		return nil, errors.Errorf("swap file %s is in use by another process", spec.Path)
	}

	sf, err := OpenSwapFile(spec.Path)
	if err != nil {
		fileLock.Unlock()
		return nil, errors.Trace(err)
	}

	fail := func(err error) (*BackingStore, error) {
		sf.Close()
		fileLock.Unlock()
		return nil, err
	}

	headerPage := make([]byte, r.pageSize)
	if err := sf.ReadPage(0, headerPage); err != nil {
		return fail(errors.Annotatef(err, "read store header %s", spec.Path))
	}
	header, err := ParseHeader(headerPage)
	if err != nil {
		return fail(errors.Annotatef(err, "verify store header %s", spec.Path))
	}

	s := &BackingStore{
		name:      spec.Name,
		prio:      spec.Priority,
		flags:     FlagFileBacked | FlagActive,
		pageSize:  r.pageSize,
		pageShift: r.pageShift,
		blockBits: r.pageShift,
		extents:   NewExtentTree(),
		header:    header,
		file:      sf,
		flock:     fileLock,
	}

	mapper := spec.Mapper
	if mapper == nil && spec.UseFibmap {
		var blockBits uint
		mapper, blockBits, err = platformFibmap(sf.File())
		if err != nil {
			return fail(errors.Trace(err))
		}
		s.blockBits = blockBits
	}
	if spec.BlockBits != 0 {
		s.blockBits = spec.BlockBits
	}
	if s.blockBits > r.pageShift {
		return fail(errors.NotValidf("filesystem block size wider than page size"))
	}

	lastBlock := uint64(sf.Size()) >> s.blockBits
	if mapper == nil {
		mapper = NewIdentityMapper(lastBlock)
	}

	maxSlots := uint64(sf.Size()) / uint64(r.pageSize)
	if header.LastSlot+1 < maxSlots {
		maxSlots = header.LastSlot + 1
	}
	if spec.MaxSlots > 0 && spec.MaxSlots < maxSlots {
		maxSlots = spec.MaxSlots
	}

	nrExtents, span, err := s.activateFromMapper(mapper, maxSlots, lastBlock)
	if err != nil {
		return fail(errors.Annotatef(err, "activate store %q", spec.Name))
	}

	s.id = r.nextID
	r.nextID++
	r.stores[s.id] = s
	r.byName[s.name] = s.id

	logger.Infof("Activated file store %q id=%d uuid=%s slots=%d extents=%d span=%d",
		s.name, s.id, header.UUIDString(), s.pages, nrExtents, span)
	return s, nil
}

// AddBlockStore activates a device-backed store with an identity extent
// layout and its own request queue.
func (r *Registry) AddBlockStore(spec BlockStoreSpec) (*BackingStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Name == "" {
		return nil, errors.NotValidf("block store without name")
	}
	if _, ok := r.byName[spec.Name]; ok {
		return nil, errors.AlreadyExistsf("store %q", spec.Name)
	}
	if spec.Dev == nil {
		return nil, errors.NotValidf("block store %q without device", spec.Name)
	}

	sectorsPerPage := uint64(r.pageSize) / blockio.SectorSize
	slots := spec.Dev.Sectors() / sectorsPerPage
	if slots < 2 {
		return nil, errors.NotValidf("device of %d sectors, below header plus one slot", spec.Dev.Sectors())
	}

	s := &BackingStore{
		name:      spec.Name,
		prio:      spec.Priority,
		flags:     FlagBlockDevice | FlagActive,
		pageSize:  r.pageSize,
		pageShift: r.pageShift,
		blockBits: r.pageShift,
		extents:   NewExtentTree(),
		dev:       spec.Dev,
	}
	if spec.Discard {
		if _, ok := spec.Dev.(blockio.SlotFreeNotifier); ok {
			s.flags |= FlagSlotFreeNotify
		} else {
			logger.Warnf("store %q: discard requested but device has no free hint", spec.Name)
		}
	}

	s.activateIdentity(slots)
	s.queue = blockio.NewQueue(spec.Dev, r.queueDepth, r.queuePool, r.queueWorkers)

	s.id = r.nextID
	r.nextID++
	r.stores[s.id] = s
	r.byName[s.name] = s.id

	logger.Infof("Activated block store %q id=%d slots=%d discard=%v",
		s.name, s.id, s.pages, s.SupportsSlotFreeNotify())
	return s, nil
}

// Get returns the store with the given id.
func (r *Registry) Get(id uint32) (*BackingStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	if !ok {
		return nil, errors.NotFoundf("store %d", id)
	}
	return s, nil
}

// ByName returns the store with the given name.
func (r *Registry) ByName(name string) (*BackingStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, errors.NotFoundf("store %q", name)
	}
	return r.stores[id], nil
}

// StoreOf resolves the store a page's slot points into.
func (r *Registry) StoreOf(pg *page.Page) (*BackingStore, error) {
	return r.Get(pg.Slot().Store)
}

// Stores returns the active stores, highest priority first.
func (r *Registry) Stores() []*BackingStore {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*BackingStore, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].prio != out[j].prio {
			return out[i].prio > out[j].prio
		}
		return out[i].id < out[j].id
	})
	return out
}

// Deactivate shuts a store down and removes it from the registry. The
// caller is responsible for having stopped I/O against it first.
func (r *Registry) Deactivate(id uint32) error {
	r.mu.Lock()
	s, ok := r.stores[id]
	if !ok {
		r.mu.Unlock()
		return errors.NotFoundf("store %d", id)
	}
	delete(r.stores, id)
	delete(r.byName, s.name)
	r.mu.Unlock()

	err := s.close()
	logger.Infof("Deactivated store %q id=%d", s.name, id)
	return errors.Trace(err)
}

// Close deactivates every store.
func (r *Registry) Close() error {
	r.mu.Lock()
	stores := make([]*BackingStore, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.stores = make(map[uint32]*BackingStore)
	r.byName = make(map[string]uint32)
	r.mu.Unlock()

	var firstErr error
	for _, s := range stores {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return errors.Trace(firstErr)
}

// LoadManifest activates every store a manifest lists.
func (r *Registry) LoadManifest(manifest *conf.StoresManifest) error {
	for _, def := range manifest.Store {
		switch def.Type {
		case "file":
			spec := FileStoreSpec{
				Name:      def.Name,
				Path:      def.Path,
				Priority:  def.Priority,
				Label:     def.Label,
				CreateMB:  def.SizeMB,
				UseFibmap: def.Mapper == "fibmap",
			}
			if _, err := r.AddFileStore(spec); err != nil {
				return errors.Annotatef(err, "manifest store %q", def.Name)
			}
		case "ram":
			dev := blockio.NewRAMDevice(r.pageSize, uint64(def.SizeMB<<20)/blockio.SectorSize)
			spec := BlockStoreSpec{
				Name:     def.Name,
				Dev:      dev,
				Priority: def.Priority,
				Discard:  def.Discard,
			}
			if _, err := r.AddBlockStore(spec); err != nil {
				return errors.Annotatef(err, "manifest store %q", def.Name)
			}
		default:
			return errors.NotValidf("manifest store %q type %q", def.Name, def.Type)
		}
	}
	return nil
}
