package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/klauspost/compress/s2"

	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/schema"
)

// SparseChunk is a paged, sparsely-indexed chunk for one chunk-span of
// cold depths: a map from localId to a small slice of PointInfo, capped at
// capacity entries per id.
type SparseChunk struct {
	base
	capacity int
	slots    map[uint64][]*data.PointInfo
}

// NewSparse allocates an empty sparse chunk keyed by chunkId, with the
// given per-node-id capacity (spec's typical value is 1).
func NewSparse(chunkId uint64, capacity int) *SparseChunk {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SparseChunk{
		base:     base{id: chunkId},
		capacity: capacity,
		slots:    make(map[uint64][]*data.PointInfo),
	}
}

// Insert accepts info at localId if the slot is empty or its per-node
// capacity is not exhausted; rejection leaves info untouched for the
// caller to retry at a deeper node.
func (c *SparseChunk) Insert(localId uint64, info *data.PointInfo) bool {
	cur := c.slots[localId]
	if len(cur) >= c.capacity {
		return false
	}
	c.slots[localId] = append(cur, info)
	return true
}

// Points returns every occupied PointInfo across every localId.
func (c *SparseChunk) Points() []*data.PointInfo {
	out := make([]*data.PointInfo, 0, len(c.slots)*c.capacity)
	for _, s := range c.slots {
		out = append(out, s...)
	}
	return out
}

// Merge takes ownership of other's entries, used by subset merging.
// Collisions across disjoint subsets are impossible by construction; an
// assertion catches a violated precondition instead of silently dropping
// data.
func (c *SparseChunk) Merge(other *SparseChunk) {
	for localId, entries := range other.slots {
		if existing, ok := c.slots[localId]; ok {
			panic(fmt.Sprintf("sparse chunk %d: merge collision at local id %d (existing=%d incoming=%d)",
				c.id, localId, len(existing), len(entries)))
		}
		c.slots[localId] = entries
	}
}

// Serialize writes, for each occupied slot, (varint localId, varint count,
// record bytes...), optionally compressed with the s2 frame codec. Slots are
// visited in ascending localId order so the byte stream is deterministic
// regardless of Go's randomized map iteration order.
func (c *SparseChunk) Serialize(sc schema.Schema, compressed bool) ([]byte, error) {
	var raw bytes.Buffer
	recSize := sc.RecordSize()
	varint := make([]byte, binary.MaxVarintLen64)

	localIds := make([]uint64, 0, len(c.slots))
	for localId := range c.slots {
		localIds = append(localIds, localId)
	}
	sort.Slice(localIds, func(i, j int) bool { return localIds[i] < localIds[j] })

	for _, localId := range localIds {
		entries := c.slots[localId]
		n := binary.PutUvarint(varint, localId)
		raw.Write(varint[:n])
		n = binary.PutUvarint(varint, uint64(len(entries)))
		raw.Write(varint[:n])
		for _, p := range entries {
			writePointRecord(&raw, p, recSize)
		}
	}

	if !compressed {
		return raw.Bytes(), nil
	}
	return s2.Encode(nil, raw.Bytes()), nil
}

// LoadSparse reconstructs a SparseChunk from bytes previously produced by
// Serialize.
func LoadSparse(chunkId uint64, capacity int, sc schema.Schema, blob []byte, compressed bool) (*SparseChunk, error) {
	c := NewSparse(chunkId, capacity)

	raw := blob
	if compressed {
		decoded, err := s2.Decode(nil, blob)
		if err != nil {
			return nil, fmt.Errorf("chunk: s2 decode sparse chunk %d: %w", chunkId, err)
		}
		raw = decoded
	}

	recSize := sc.RecordSize()
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		localId, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("chunk: read local id: %w", err)
		}
		count, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("chunk: read entry count: %w", err)
		}
		entries := make([]*data.PointInfo, 0, count)
		for i := uint64(0); i < count; i++ {
			p, err := readPointRecord(r, recSize)
			if err != nil {
				return nil, fmt.Errorf("chunk: read sparse record: %w", err)
			}
			entries = append(entries, p)
		}
		c.slots[localId] = entries
	}
	return c, nil
}

var _ Chunk = (*SparseChunk)(nil)
