package builder

import (
	"fmt"
	"sort"

	"github.com/ecopia-map/entwine_go/internal/chunk"
	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/metadata"
	"github.com/ecopia-map/entwine_go/internal/stats"
)

// Merge implements the subset-merge protocol: read entwine-{i} for every
// shard in [0, shards), union the id lists, merge each shard's base chunk
// slot-by-slot into a fresh unified one, sum numPoints/numFallThrough,
// assert equal numOutOfBounds across shards, then write the unified
// entwine metadata document and merged base chunk with the subset field
// cleared. Grounded on
// _examples/original_source/entwine/tree/builder.cpp's merge() and
// pkg/tiler_merge.go's BuildParentTree shard-combination shape.
func (b *Builder) Merge(shards int) error {
	if shards < 1 {
		return fmt.Errorf("builder: merge: shards must be >= 1")
	}

	docs := make([]metadata.Document, shards)
	for i := 0; i < shards; i++ {
		key := fmt.Sprintf("entwine-%d", i)
		blob, err := b.opts.Output.Get(key)
		if err != nil {
			return fmt.Errorf("builder: merge: reading %s: %w", key, err)
		}
		doc, err := metadata.Unmarshal(blob)
		if err != nil {
			return fmt.Errorf("builder: merge: parsing %s: %w", key, err)
		}
		docs[i] = doc
	}

	unified := docs[0]
	unified.Structure.Subset = nil

	idSet := make(map[uint64]struct{})
	var numPoints, numFallThrough, numOutOfBounds int64
	numOutOfBounds = docs[0].Stats.NumOutOfBounds

	merged := chunk.NewBase(unified.Structure.BaseIndexBegin(), unified.Structure.BaseIndexEnd())

	for i, doc := range docs {
		for _, id := range doc.Ids {
			idSet[id] = struct{}{}
		}
		numPoints += doc.Stats.NumPoints
		numFallThrough += doc.Stats.NumFallThrough
		if doc.Stats.NumOutOfBounds != numOutOfBounds {
			return fmt.Errorf("builder: merge: shard %d has numOutOfBounds %d, want %d (every shard observes the same out-of-bounds points)", i, doc.Stats.NumOutOfBounds, numOutOfBounds)
		}

		shardSt := doc.Structure
		key := fmt.Sprintf("%d%s", shardSt.BaseIndexBegin(), shardSt.SubsetPostfix())
		blob, err := b.opts.Output.Get(key)
		if err != nil {
			return fmt.Errorf("builder: merge: reading base chunk for shard %d: %w", i, err)
		}
		shardBase, err := chunk.LoadBase(shardSt.BaseIndexBegin(), shardSt.BaseIndexEnd(), doc.Schema, blob)
		if err != nil {
			return fmt.Errorf("builder: merge: loading base chunk for shard %d: %w", i, err)
		}
		shardBase.ForEach(func(nodeId uint64, info *data.PointInfo) {
			merged.MergeSlot(nodeId, info)
		})
	}

	ids := make([]uint64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	unified.Stats = stats.Snapshot{
		NumPoints:      numPoints,
		NumFallThrough: numFallThrough,
		NumOutOfBounds: numOutOfBounds,
	}
	unified.Ids = ids

	baseBlob, err := merged.Serialize(unified.Schema, unified.Compressed)
	if err != nil {
		return fmt.Errorf("builder: merge: serializing merged base chunk: %w", err)
	}
	baseKey := fmt.Sprintf("%d", unified.Structure.BaseIndexBegin())
	if err := b.opts.Output.Put(baseKey, baseBlob); err != nil {
		return fmt.Errorf("builder: merge: writing merged base chunk: %w", err)
	}

	metaBlob, err := metadata.Marshal(unified)
	if err != nil {
		return fmt.Errorf("builder: merge: marshaling unified metadata: %w", err)
	}
	if err := b.opts.Output.Put("entwine", metaBlob); err != nil {
		return fmt.Errorf("builder: merge: writing unified metadata: %w", err)
	}

	return nil
}
