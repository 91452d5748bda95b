package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring"

	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/schema"
)

// BaseChunk is the single, permanently-resident dense chunk covering every
// node id in [baseIndexBegin, baseIndexEnd). Slots are indexed by
// (nodeId - baseIndexBegin) and hold at most one point each.
type BaseChunk struct {
	base
	beginId uint64
	slots   []*data.PointInfo
}

// NewBase allocates an empty base chunk for the given id range.
func NewBase(beginId, endId uint64) *BaseChunk {
	return &BaseChunk{
		base:    base{id: beginId},
		beginId: beginId,
		slots:   make([]*data.PointInfo, endId-beginId),
	}
}

func (c *BaseChunk) localIndex(nodeId uint64) uint64 { return nodeId - c.beginId }

// Insert places info in the slot for nodeId if empty. Base slots have a
// fixed capacity of one; the base region's addressing invariant guarantees
// a node id maps to exactly one slot.
func (c *BaseChunk) Insert(nodeId uint64, info *data.PointInfo) bool {
	idx := c.localIndex(nodeId)
	if idx >= uint64(len(c.slots)) {
		return false
	}
	if c.slots[idx] != nil {
		return false
	}
	c.slots[idx] = info
	return true
}

// Points returns every occupied slot's PointInfo, in id order.
func (c *BaseChunk) Points() []*data.PointInfo {
	out := make([]*data.PointInfo, 0, len(c.slots))
	for _, p := range c.slots {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// ForEach visits every occupied slot with its absolute node id, in id
// order, used by subset merge to transplant one shard's base chunk into
// the unified one.
func (c *BaseChunk) ForEach(fn func(nodeId uint64, info *data.PointInfo)) {
	for i, p := range c.slots {
		if p != nil {
			fn(c.beginId+uint64(i), p)
		}
	}
}

// MergeSlot installs other's occupied slot for absolute nodeId into this
// chunk, used by the subset-merge protocol's slot-by-slot base merge.
// Disjoint subsets make collisions impossible; a collision here indicates
// a bug and panics rather than silently overwriting.
func (c *BaseChunk) MergeSlot(nodeId uint64, info *data.PointInfo) {
	idx := c.localIndex(nodeId)
	if c.slots[idx] != nil {
		panic(fmt.Sprintf("base chunk merge collision at node %d", nodeId))
	}
	c.slots[idx] = info
}

// Serialize writes a header (schema hash, count) followed by a roaring-
// bitmap presence prefix (one bit per slot) and then the occupied records
// in id order, so load() can reconstruct occupancy without a sentinel
// record.
func (c *BaseChunk) Serialize(sc schema.Schema, _ bool) ([]byte, error) {
	bm := roaring.New()
	count := uint32(0)
	for i, p := range c.slots {
		if p != nil {
			bm.Add(uint32(i))
			count++
		}
	}
	bm.RunOptimize()

	var buf bytes.Buffer
	hash := sc.Hash()
	buf.Write(hash[:])
	binary.Write(&buf, binary.LittleEndian, count)

	bmBytes, err := bm.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("chunk: serialize presence bitmap: %w", err)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(bmBytes)))
	buf.Write(bmBytes)

	recSize := sc.RecordSize()
	for _, p := range c.slots {
		if p == nil {
			continue
		}
		writePointRecord(&buf, p, recSize)
	}
	return buf.Bytes(), nil
}

// LoadBase reconstructs a BaseChunk from bytes previously produced by
// Serialize.
func LoadBase(beginId, endId uint64, sc schema.Schema, blob []byte) (*BaseChunk, error) {
	c := NewBase(beginId, endId)
	r := bytes.NewReader(blob)

	var hash [8]byte
	if _, err := io.ReadFull(r, hash[:]); err != nil {
		return nil, fmt.Errorf("chunk: read schema hash: %w", err)
	}
	want := sc.Hash()
	if hash != want {
		return nil, fmt.Errorf("chunk: schema hash mismatch, base chunk was built with a different schema")
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("chunk: read count: %w", err)
	}

	var bmLen uint32
	if err := binary.Read(r, binary.LittleEndian, &bmLen); err != nil {
		return nil, fmt.Errorf("chunk: read bitmap length: %w", err)
	}
	bmBytes := make([]byte, bmLen)
	if _, err := io.ReadFull(r, bmBytes); err != nil {
		return nil, fmt.Errorf("chunk: read bitmap: %w", err)
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(bmBytes); err != nil {
		return nil, fmt.Errorf("chunk: unmarshal bitmap: %w", err)
	}

	recSize := sc.RecordSize()
	it := bm.Iterator()
	for it.HasNext() {
		idx := it.Next()
		p, err := readPointRecord(r, recSize)
		if err != nil {
			return nil, fmt.Errorf("chunk: read record %d: %w", idx, err)
		}
		c.slots[idx] = p
	}
	return c, nil
}

func writePointRecord(buf *bytes.Buffer, p *data.PointInfo, recSize int) {
	binary.Write(buf, binary.LittleEndian, p.Point.Position.X)
	binary.Write(buf, binary.LittleEndian, p.Point.Position.Y)
	binary.Write(buf, binary.LittleEndian, p.Point.Position.Z)
	binary.Write(buf, binary.LittleEndian, p.Point.OriginID)
	binary.Write(buf, binary.LittleEndian, p.Point.Index)
	buf.Write(p.Point.Record[:recSize])
}

func readPointRecord(r *bytes.Reader, recSize int) (*data.PointInfo, error) {
	p := &data.PointInfo{}
	if err := binary.Read(r, binary.LittleEndian, &p.Point.Position.X); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &p.Point.Position.Y); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &p.Point.Position.Z); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &p.Point.OriginID); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &p.Point.Index); err != nil {
		return nil, err
	}
	rec := make([]byte, recSize)
	if _, err := io.ReadFull(r, rec); err != nil {
		return nil, err
	}
	p.Point.Record = rec
	return p, nil
}

var _ Chunk = (*BaseChunk)(nil)
