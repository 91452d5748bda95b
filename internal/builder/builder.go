// Package builder orchestrates ingest: the work pool, the per-file
// driver, bounds inference, and save/load/merge. Grounded directly on
// _examples/original_source/entwine/tree/builder.cpp (insert/join/save/
// merge, the three-way point rejection split) and, for the goroutine-pool
// shape, on pkg/tiler.go's producer/consumer channel pool.
package builder

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ecopia-map/entwine_go/internal/clipper"
	"github.com/ecopia-map/entwine_go/internal/climber"
	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/geometry"
	"github.com/ecopia-map/entwine_go/internal/manifest"
	"github.com/ecopia-map/entwine_go/internal/metadata"
	"github.com/ecopia-map/entwine_go/internal/pointpool"
	"github.com/ecopia-map/entwine_go/internal/reader"
	"github.com/ecopia-map/entwine_go/internal/registry"
	"github.com/ecopia-map/entwine_go/internal/schema"
	"github.com/ecopia-map/entwine_go/internal/stats"
	"github.com/ecopia-map/entwine_go/internal/storageendpoint"
	"github.com/ecopia-map/entwine_go/internal/structure"
	"github.com/ecopia-map/entwine_go/internal/workpool"
	"github.com/ecopia-map/entwine_go/internal/xlog"
)

// Cadence, per spec.md §4.6: every N accepted points a worker drops its
// current Clipper and starts a fresh one. Multi-thread default is
// 65536*24; single-thread default is 65536*256.
const (
	MultiThreadCadence  = 65536 * 24
	SingleThreadCadence = 65536 * 256
)

// fatalIngestError wraps an ingestFile error that must abort the whole
// build (bounds inference on the first file), as opposed to a per-file
// error, which is recorded on that file's manifest entry and never
// escapes to the work pool: a bad file must not stop siblings still
// waiting on a worker slot, nor stop Save from running to completion.
type fatalIngestError struct{ err error }

func (e *fatalIngestError) Error() string { return e.err.Error() }
func (e *fatalIngestError) Unwrap() error { return e.err }

// Options configures a Builder.
type Options struct {
	Output       storageendpoint.Endpoint
	Tmp          storageendpoint.Endpoint // must be local; downloading remote inputs stages here
	Input        storageendpoint.Endpoint // optional; nil means every insert path is a local filesystem path
	Reader       reader.Reader
	Reprojection reader.Reprojection

	Schema    schema.Schema
	Structure structure.Structure

	// Bounds, if non-nil, skips inference on the first file.
	Bounds *geometry.Bounds

	TrustHeaders   bool
	Compressed     bool
	TotalThreads   int
	SingleThreaded bool
}

// Builder is the orchestration entity: it exclusively owns Structure,
// Bounds, Schema, Manifest, Stats, PointPool, and Registry, per the data
// model's ownership summary.
type Builder struct {
	opts Options

	mu     sync.Mutex
	bounds geometry.Bounds
	srs    string
	zGrown bool
	zMin   float64
	zMax   float64

	manifest *manifest.Manifest
	stats    *stats.Stats
	pool     *pointpool.Pool
	registry *registry.Registry
	workPool *workpool.Pool

	cadence uint64

	inferOnce sync.Once
	inferErr  error
}

// New constructs a Builder. Fails synchronously (configuration fatal, per
// §7) if the tmp endpoint is remote: entwine's own prep() step requires a
// local staging area for downloaded inputs.
func New(opts Options) (*Builder, error) {
	if opts.Tmp != nil && opts.Tmp.IsRemote() {
		return nil, fmt.Errorf("builder: tmp endpoint must be local")
	}
	if opts.TotalThreads <= 0 {
		opts.TotalThreads = 4
	}
	workThreads := int(math.Round(float64(opts.TotalThreads) * 0.47))
	if workThreads < 1 {
		workThreads = 1
	}
	clipThreads := opts.TotalThreads - workThreads
	if clipThreads < 4 {
		clipThreads = 4
	}

	cadence := uint64(MultiThreadCadence)
	if opts.SingleThreaded {
		cadence = SingleThreadCadence
	}

	sc := opts.Schema
	pool := pointpool.New(sc.RecordSize())
	reg := registry.New(opts.Structure, sc, pool, opts.Output, registry.Options{
		Compressed:          opts.Compressed,
		ClipPoolConcurrency: clipThreads,
	})

	bounds := geometry.Expander(opts.Structure.Is3d)
	if opts.Bounds != nil {
		bounds = *opts.Bounds
	}

	b := &Builder{
		opts:     opts,
		bounds:   bounds,
		manifest: manifest.New(),
		stats:    &stats.Stats{},
		pool:     pool,
		registry: reg,
		workPool: workpool.New(workThreads),
		cadence:  cadence,
	}
	if opts.Bounds != nil {
		b.inferOnce.Do(func() {})
	}
	return b, nil
}

// Insert registers path in the manifest and enqueues an ingest task.
// Returns false if the path was already inserted, or if the reader cannot
// open it (recorded as an omission).
func (b *Builder) Insert(path string) bool {
	id := b.manifest.AddOrigin(path)
	if id == manifest.SentinelDuplicate {
		return false
	}
	if _, ok, err := b.opts.Reader.Preview(path); err != nil || !ok {
		b.manifest.SetStatus(id, manifest.Omitted)
		xlog.Outputf("omitting %s: reader could not open it", path)
		return false
	}
	if err := b.workPool.Go(func() error {
		err := b.ingestFile(id, path)
		var fatal *fatalIngestError
		if errors.As(err, &fatal) {
			return fatal
		}
		// Every other ingest failure is already recorded on the manifest
		// by ingestFile; it must not surface as a work pool error, or
		// Join/Save would treat one bad file as fatal to the whole build.
		return nil
	}); err != nil {
		b.manifest.SetStatus(id, manifest.Omitted)
		return false
	}
	return true
}

// Join blocks until every enqueued task completes. No new work may be
// submitted until Go is called.
func (b *Builder) Join() error {
	return b.workPool.Join()
}

// Go reopens the work pool generation after a Join, allowing further
// Insert calls.
func (b *Builder) Go() {
	b.workPool.Reopen()
}

func (b *Builder) localPath(path string) (string, func(), error) {
	if b.opts.Input == nil || !b.opts.Input.IsRemote() {
		return path, func() {}, nil
	}
	handle, err := b.opts.Input.GetLocalHandle(path, b.opts.Tmp)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {}
	if handle.Cleanup != nil {
		cleanup = func() { _ = handle.Cleanup() }
	}
	return handle.Path, cleanup, nil
}

// infer runs on the first file when no bounds were supplied: preview the
// header if TrustHeaders, otherwise stream every point through a bounds
// expander.
func (b *Builder) infer(path string) error {
	if b.opts.TrustHeaders {
		res, ok, err := b.opts.Reader.Preview(path)
		if err != nil {
			return fmt.Errorf("builder: infer bounds from header: %w", err)
		}
		if !ok {
			return fmt.Errorf("builder: infer bounds: reader has no header for %q", path)
		}
		b.mu.Lock()
		b.bounds = res.Bounds
		b.srs = res.Srs
		b.mu.Unlock()
		return nil
	}

	expander := geometry.Expander(b.opts.Structure.Is3d)
	ok, err := b.opts.Reader.Run(path, nil, func(batch []data.Point) error {
		for _, p := range batch {
			expander.Grow(p.Position)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("builder: infer bounds: %w", err)
	}
	if !ok {
		return fmt.Errorf("builder: infer bounds: reader failed reading %q", path)
	}
	b.mu.Lock()
	b.bounds = expander
	b.mu.Unlock()
	return nil
}

// ingestFile is the per-file task run on the work pool: acquire a local
// handle, infer bounds on the first file if needed, walk every point
// through a fresh Climber into the Registry, swapping the worker's
// Clipper at the configured cadence.
func (b *Builder) ingestFile(originId uint32, path string) error {
	local, cleanup, err := b.localPath(path)
	if err != nil {
		b.manifest.SetStatus(originId, manifest.Error)
		return fmt.Errorf("builder: acquire local handle for %q: %w", path, err)
	}
	defer cleanup()

	b.inferOnce.Do(func() { b.inferErr = b.infer(local) })
	if b.inferErr != nil {
		b.manifest.SetStatus(originId, manifest.Error)
		xlog.Outputf("fatal: bounds inference failed: %v", b.inferErr)
		return &fatalIngestError{b.inferErr}
	}

	clip := clipper.New(b.registry)
	var accepted uint64
	var index uint32

	sink := func(batch []data.Point) error {
		for i := range batch {
			pt := batch[i]
			pt.OriginID = originId
			pt.Index = index
			index++

			b.mu.Lock()
			bounds := b.bounds
			b.mu.Unlock()

			if !bounds.Contains(pt.Position) {
				b.stats.AddOutOfBounds()
				continue
			}

			if b.opts.Structure.Is3d && b.opts.TrustHeaders {
				b.mu.Lock()
				if !b.zGrown {
					b.zMin, b.zMax = pt.Position.Z, pt.Position.Z
					b.zGrown = true
				} else if pt.Position.Z < b.zMin {
					b.zMin = pt.Position.Z
				} else if pt.Position.Z > b.zMax {
					b.zMax = pt.Position.Z
				}
				b.mu.Unlock()
			}

			info := b.pool.AcquireOne()
			info.Point.Position = pt.Position
			info.Point.OriginID = pt.OriginID
			info.Point.Index = pt.Index
			if len(pt.Record) == len(info.Point.Record) {
				copy(info.Point.Record, pt.Record)
			}

			cl := climber.New(b.opts.Structure, bounds)
			switch b.registry.AddPoint(info, cl, clip) {
			case registry.Accepted:
				b.stats.AddPoint()
				accepted++
				if accepted%b.cadence == 0 {
					clip.Release()
					clip = clipper.New(b.registry)
				}
			case registry.FallThrough:
				b.stats.AddFallThrough()
				b.pool.ReleaseOne(info)
			case registry.Excluded:
				// Point belongs to a different subset shard; not a
				// fall-through, so it must not inflate that count.
				b.pool.ReleaseOne(info)
			}
		}
		return nil
	}

	ok, err := b.opts.Reader.Run(local, b.opts.Reprojection, sink)
	clip.Release()

	if err != nil || !ok {
		b.manifest.SetStatus(originId, manifest.Error)
		if err == nil {
			err = fmt.Errorf("builder: reader failed reading %q", path)
		}
		return err
	}

	b.manifest.SetStatus(originId, manifest.Inserted)
	rs := b.registry.StatsSnapshot()
	xlog.Outputf("ingested %s: global usage %d resident chunks, %d points allocated", path, rs.ResidentChunks, rs.Allocated)
	return nil
}

// baseKey returns the storage key of the (possibly subset-tagged) base
// chunk.
func (b *Builder) baseKey() string {
	return fmt.Sprintf("%d%s", b.opts.Structure.BaseIndexBegin(), b.opts.Structure.SubsetPostfix())
}

// metaKey returns the storage key of this build's root metadata document.
func (b *Builder) metaKey() string {
	return "entwine" + b.opts.Structure.SubsetPostfix()
}

// Save joins outstanding work, serializes metadata and the registry's
// chunks to the output endpoint, then reopens the work pool so further
// inserts are accepted.
func (b *Builder) Save() error {
	if err := b.Join(); err != nil {
		return fmt.Errorf("builder: save: draining work pool: %w", err)
	}

	ids, err := b.registry.Save(b.baseKey())
	if err != nil {
		return fmt.Errorf("builder: save: %w", err)
	}

	b.mu.Lock()
	if b.zGrown {
		b.bounds.GrowZ(b.zMin, b.zMax)
	}
	doc := metadata.Document{
		Bounds:       b.bounds,
		Schema:       b.opts.Schema,
		Structure:    b.opts.Structure,
		Manifest:     b.manifest.Entries(),
		Srs:          b.srs,
		Stats:        b.stats.Snapshot(),
		Compressed:   b.opts.Compressed,
		TrustHeaders: b.opts.TrustHeaders,
		Ids:          ids,
	}
	b.mu.Unlock()

	blob, err := metadata.Marshal(doc)
	if err != nil {
		return fmt.Errorf("builder: save: marshal metadata: %w", err)
	}
	if err := b.opts.Output.Put(b.metaKey(), blob); err != nil {
		return fmt.Errorf("builder: save: write metadata: %w", err)
	}

	b.Go()
	return nil
}

// Load installs a previously saved build's metadata, manifest, stats, and
// registry state, so subsequent Insert calls continue the same build
// (scenario: crash and resume).
func (b *Builder) Load() error {
	blob, err := b.opts.Output.Get(b.metaKey())
	if err != nil {
		return fmt.Errorf("builder: load: %w", err)
	}
	doc, err := metadata.Unmarshal(blob)
	if err != nil {
		return fmt.Errorf("builder: load: %w", err)
	}

	b.mu.Lock()
	b.bounds = doc.Bounds
	b.srs = doc.Srs
	b.mu.Unlock()

	b.manifest.Load(doc.Manifest)
	b.stats.Load(doc.Stats)
	b.inferOnce.Do(func() {})

	if err := b.registry.Load(b.baseKey(), doc.Ids); err != nil {
		return fmt.Errorf("builder: load: %w", err)
	}
	return nil
}

// Manifest exposes a snapshot of the origin list, mainly for CLI progress
// reporting.
func (b *Builder) Manifest() []manifest.Entry { return b.manifest.Entries() }

// Stats exposes the current counters.
func (b *Builder) Stats() stats.Snapshot { return b.stats.Snapshot() }

// Bounds returns the current (possibly still-inferring) build bounds.
func (b *Builder) Bounds() geometry.Bounds {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bounds
}
