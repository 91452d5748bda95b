// Package registry implements the chunk-id to chunk-state map: lazy
// materialization under a per-chunkId single-flight lock, reference-
// counted eviction, and the save/load surface that drives the on-disk
// layout. Grounded on GridNode's lazy double-checked-lock initialization
// of its children/cell maps (grid_node.go's getPointGridCell/
// initializeGridCell), translated from an in-memory node graph to an
// on-disk chunk registry.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ecopia-map/entwine_go/internal/chunk"
	"github.com/ecopia-map/entwine_go/internal/climber"
	"github.com/ecopia-map/entwine_go/internal/clipper"
	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/geometry"
	"github.com/ecopia-map/entwine_go/internal/pointpool"
	"github.com/ecopia-map/entwine_go/internal/schema"
	"github.com/ecopia-map/entwine_go/internal/storageendpoint"
	"github.com/ecopia-map/entwine_go/internal/structure"
	"github.com/ecopia-map/entwine_go/internal/workpool"
)

// entry is one resident chunkId's state in the map. loading is non-nil
// exactly while a single-flight materialization is in progress; waiters
// receive the result by reading c/err after loading is closed.
type entry struct {
	c       chunk.Chunk
	loading chan struct{}
	err     error
}

// Registry is the map from chunk id to chunk state, plus the single
// permanently-resident base chunk.
type Registry struct {
	st       structure.Structure
	sc       schema.Schema
	pool     *pointpool.Pool
	endpoint storageendpoint.Endpoint

	compressed bool
	capacity   int

	mapMu          sync.Mutex
	resident       map[uint64]*entry
	known          map[uint64]struct{} // chunk ids present in a loaded/merged metadata's id list
	everSerialized map[uint64]struct{}

	base   *chunk.BaseChunk
	baseMu sync.Mutex

	clipPool *workpool.Pool
}

// Options configures a new Registry.
type Options struct {
	Compressed          bool
	Capacity            int // sparse per-node capacity, default chunk.DefaultCapacity
	ClipPoolConcurrency int
}

// New returns an empty Registry with a freshly allocated base chunk.
func New(st structure.Structure, sc schema.Schema, pool *pointpool.Pool, endpoint storageendpoint.Endpoint, opts Options) *Registry {
	if opts.Capacity <= 0 {
		opts.Capacity = chunk.DefaultCapacity
	}
	if opts.ClipPoolConcurrency <= 0 {
		opts.ClipPoolConcurrency = 4
	}
	return &Registry{
		st:             st,
		sc:             sc,
		pool:           pool,
		endpoint:       endpoint,
		compressed:     opts.Compressed,
		capacity:       opts.Capacity,
		resident:       make(map[uint64]*entry),
		known:          make(map[uint64]struct{}),
		everSerialized: make(map[uint64]struct{}),
		base:           chunk.NewBase(st.BaseIndexBegin(), st.BaseIndexEnd()),
		clipPool:       workpool.New(opts.ClipPoolConcurrency),
	}
}

// Outcome classifies why AddPoint stopped descending.
type Outcome int

const (
	// Accepted means info was inserted into the base chunk or a cold chunk.
	Accepted Outcome = iota
	// FallThrough means the climber ran out of depth without ever finding
	// a slot for info: every node it visited was already occupied.
	FallThrough
	// Excluded means info's cold node belongs to a different subset
	// shard. It is not a fall-through: the point was never eligible for
	// this Registry to accept in the first place.
	Excluded
)

// AddPoint descends cl, touching chunks as needed via clip, until either a
// chunk accepts info, the climber runs out of depth (FallThrough), or a
// subset shard boundary rules the point out entirely (Excluded). For a
// subset build, ownership is decided once, up front, against the node id
// the point would occupy at ColdDepthBegin: a point this shard does not own
// is excluded from the whole tree, base region included, so that every
// shard's base chunk sees only its own disjoint slice of the input and two
// shards' base chunks never collide on the same slot at merge time. The
// worker's own clipper doubles as a per-chunkId cache of the resolved
// chunk.Chunk for ids it has already pinned this generation: clip.Contains
// lets AddPoint reuse the pinned chunk without re-touching (and
// re-Ref'ing) the registry's map, so a chunk's refcount only grows once
// per worker per eviction cycle no matter how many of that worker's
// points land in it.
func (r *Registry) AddPoint(info *data.PointInfo, cl *climber.Climber, clip *clipper.Clipper) Outcome {
	if r.st.Subset != nil && !r.ownsPoint(info, cl.Bounds()) {
		return Excluded
	}

	for {
		if r.st.IsBase(cl.NodeId()) {
			if r.base.Insert(cl.NodeId(), info) {
				return Accepted
			}
		} else if !r.st.IsNull(cl.NodeId()) {
			chunkId := r.st.ChunkIdFor(cl.NodeId())
			var c chunk.Chunk
			var err error
			if clip.Contains(chunkId) {
				c, err = r.resolvePinned(chunkId)
			} else {
				c, err = r.touch(chunkId, clip)
			}
			if err == nil {
				c.Lock()
				accepted := c.Insert(cl.NodeId(), info)
				c.Unlock()
				if accepted {
					return Accepted
				}
			}
		}
		if cl.AtMaxDepth() {
			return FallThrough
		}
		cl.Magnify(info.Point.Position)
	}
}

// ownsPoint reports whether this shard owns the node id info's position
// would occupy at ColdDepthBegin, by walking a disposable probe climber
// from the same root bounds cl started from. The descent depends only on
// bounds and position, never occupancy, so it lands on exactly the same
// node id the real descent would reach at that depth, without mutating cl
// or touching the registry.
func (r *Registry) ownsPoint(info *data.PointInfo, rootBounds geometry.Bounds) bool {
	probe := climber.New(r.st, rootBounds)
	for probe.Depth() < r.st.ColdDepthBegin {
		probe.Magnify(info.Point.Position)
	}
	return r.st.OwnsChild(probe.NodeId())
}

// resolvePinned returns the chunk this worker's clipper has already
// pinned, without touching the registry map again. Since the clipper has
// not released chunkId yet, its refcount cannot have dropped to zero and
// the entry cannot have been evicted.
func (r *Registry) resolvePinned(chunkId uint64) (chunk.Chunk, error) {
	r.mapMu.Lock()
	e, ok := r.resident[chunkId]
	r.mapMu.Unlock()
	if !ok || e.c == nil {
		return nil, fmt.Errorf("registry: chunk %d marked pinned by clipper but not resident", chunkId)
	}
	return e.c, nil
}

// touch locates chunkId: if resident, ref it and mark the clipper; else,
// under a per-chunkId single-flight lock, fetch it from the endpoint (if
// known) or allocate an empty sparse chunk, install it, then ref and mark.
// It always returns the chunk it pinned, so the caller never has to
// re-resolve chunkId against the map under separate locking. Callers
// should only reach here for a chunkId the clipper has not already
// marked; a chunk it has already pinned is resolved via resolvePinned
// instead, so its refcount is not bumped a second time.
func (r *Registry) touch(chunkId uint64, clip *clipper.Clipper) (chunk.Chunk, error) {
	r.mapMu.Lock()
	e, ok := r.resident[chunkId]
	if ok {
		loading := e.loading
		r.mapMu.Unlock()
		if loading != nil {
			<-loading
		}
		if e.err != nil {
			return nil, e.err
		}
		e.c.Ref()
		clip.Mark(chunkId)
		return e.c, nil
	}

	e = &entry{loading: make(chan struct{})}
	r.resident[chunkId] = e
	_, isKnown := r.known[chunkId]
	r.mapMu.Unlock()

	var c chunk.Chunk
	var err error
	if isKnown {
		var blob []byte
		blob, err = r.endpoint.Get(fmt.Sprintf("%d", chunkId))
		if err == nil {
			c, err = chunk.LoadSparse(chunkId, r.capacity, r.sc, blob, r.compressed)
		}
	} else {
		c = chunk.NewSparse(chunkId, r.capacity)
	}

	r.mapMu.Lock()
	e.c = c
	e.err = err
	close(e.loading)
	e.loading = nil
	if err != nil {
		delete(r.resident, chunkId)
	}
	r.mapMu.Unlock()

	if err != nil {
		return nil, err
	}
	c.Ref()
	clip.Mark(chunkId)
	return c, nil
}

// Clip decrements chunkId's refcount. If it drops to zero, serialization
// is scheduled on the clip pool; on completion, if the chunk is still at
// refcount zero, it is dropped from the resident map. Per the "always
// complete the write" policy, a chunk re-touched between scheduling and
// completion still gets its in-flight write finished; the reload just
// picks up whatever completed last.
func (r *Registry) Clip(chunkId uint64) {
	r.mapMu.Lock()
	e, ok := r.resident[chunkId]
	r.mapMu.Unlock()
	if !ok || e.c == nil {
		return
	}

	e.c.Lock()
	n := e.c.Unref()
	e.c.Unlock()
	if n != 0 {
		return
	}

	r.clipPool.Go(func() error {
		e.c.Lock()
		blob, err := e.c.Serialize(r.sc, r.compressed)
		e.c.Unlock()
		if err != nil {
			return fmt.Errorf("registry: serialize chunk %d: %w", chunkId, err)
		}
		if err := r.endpoint.Put(fmt.Sprintf("%d", chunkId), blob); err != nil {
			return fmt.Errorf("registry: put chunk %d: %w", chunkId, err)
		}
		r.mapMu.Lock()
		r.everSerialized[chunkId] = struct{}{}
		if e.c.RefCount() == 0 {
			delete(r.resident, chunkId)
		}
		r.mapMu.Unlock()
		return nil
	})
}

// Base returns the permanently-resident base chunk.
func (r *Registry) Base() *chunk.BaseChunk { return r.base }

// Save flushes every resident cold chunk to the endpoint, writes the base
// chunk under baseKey, and returns the full sorted id list of every chunk
// ever serialized during this Registry's lifetime (for embedding in
// metadata). Callers must have already drained all workers (Builder.join)
// before calling Save.
func (r *Registry) Save(baseKey string) ([]uint64, error) {
	if err := r.clipPool.Join(); err != nil {
		return nil, fmt.Errorf("registry: draining clip pool: %w", err)
	}
	r.clipPool.Reopen()

	r.mapMu.Lock()
	remaining := make([]*entry, 0, len(r.resident))
	ids := make([]uint64, 0, len(r.resident))
	for id, e := range r.resident {
		remaining = append(remaining, e)
		ids = append(ids, id)
	}
	r.mapMu.Unlock()

	for i, e := range remaining {
		e.c.Lock()
		blob, err := e.c.Serialize(r.sc, r.compressed)
		e.c.Unlock()
		if err != nil {
			return nil, fmt.Errorf("registry: serialize chunk %d: %w", ids[i], err)
		}
		if err := r.endpoint.Put(fmt.Sprintf("%d", ids[i]), blob); err != nil {
			return nil, fmt.Errorf("registry: put chunk %d: %w", ids[i], err)
		}
	}

	r.mapMu.Lock()
	for _, id := range ids {
		r.everSerialized[id] = struct{}{}
	}
	all := make([]uint64, 0, len(r.everSerialized))
	for id := range r.everSerialized {
		all = append(all, id)
	}
	r.mapMu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	r.baseMu.Lock()
	baseBlob, err := r.base.Serialize(r.sc, false)
	r.baseMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("registry: serialize base chunk: %w", err)
	}
	if err := r.endpoint.Put(baseKey, baseBlob); err != nil {
		return nil, fmt.Errorf("registry: put base chunk: %w", err)
	}

	return all, nil
}

// Load installs the base chunk from baseKey and records ids as known so
// future touches fetch rather than allocate fresh.
func (r *Registry) Load(baseKey string, ids []uint64) error {
	blob, err := r.endpoint.Get(baseKey)
	if err != nil {
		return fmt.Errorf("registry: get base chunk: %w", err)
	}
	base, err := chunk.LoadBase(r.st.BaseIndexBegin(), r.st.BaseIndexEnd(), r.sc, blob)
	if err != nil {
		return fmt.Errorf("registry: load base chunk: %w", err)
	}
	r.baseMu.Lock()
	r.base = base
	r.baseMu.Unlock()

	r.mapMu.Lock()
	for _, id := range ids {
		r.known[id] = struct{}{}
		r.everSerialized[id] = struct{}{}
	}
	r.mapMu.Unlock()
	return nil
}

// Stats is a resident-chunk progress snapshot, surfaced by Builder after
// each file completes.
type Stats struct {
	ResidentChunks int
	Allocated      int
}

func (r *Registry) StatsSnapshot() Stats {
	r.mapMu.Lock()
	n := len(r.resident)
	r.mapMu.Unlock()
	return Stats{ResidentChunks: n, Allocated: r.pool.Allocated()}
}
