package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/geometry"
	"github.com/ecopia-map/entwine_go/internal/schema"
)

func testSchema() schema.Schema {
	return schema.New([]schema.Dimension{
		{Name: "Intensity", Type: schema.Uint16},
	})
}

func point(x, y, z float64, origin uint32) *data.PointInfo {
	return &data.PointInfo{Point: data.Point{
		Position: geometry.Point3{X: x, Y: y, Z: z},
		Record:   make([]byte, testSchema().RecordSize()),
		OriginID: origin,
	}}
}

func TestBaseChunkInsertRejectsSecondWriteToSameSlot(t *testing.T) {
	c := NewBase(0, 8)
	assert.True(t, c.Insert(3, point(1, 2, 3, 1)))
	assert.False(t, c.Insert(3, point(4, 5, 6, 2)), "a base slot holds at most one point")
}

func TestBaseChunkInsertOutOfRangeRejected(t *testing.T) {
	c := NewBase(10, 18)
	assert.False(t, c.Insert(20, point(0, 0, 0, 0)), "node id at or past endId has no slot and must be rejected")
}

func TestBaseChunkSerializeRoundTrip(t *testing.T) {
	sc := testSchema()
	c := NewBase(0, 16)
	require.True(t, c.Insert(2, point(1, 2, 3, 7)))
	require.True(t, c.Insert(9, point(-1, -2, -3, 8)))

	blob, err := c.Serialize(sc, false)
	require.NoError(t, err)

	loaded, err := LoadBase(0, 16, sc, blob)
	require.NoError(t, err)

	got := loaded.Points()
	assert.Len(t, got, 2)

	byOrigin := map[uint32]*data.PointInfo{}
	for _, p := range got {
		byOrigin[p.Point.OriginID] = p
	}
	require.Contains(t, byOrigin, uint32(7))
	assert.Equal(t, geometry.Point3{X: 1, Y: 2, Z: 3}, byOrigin[7].Point.Position)
	require.Contains(t, byOrigin, uint32(8))
	assert.Equal(t, geometry.Point3{X: -1, Y: -2, Z: -3}, byOrigin[8].Point.Position)
}

func TestBaseChunkSchemaMismatchRejectedOnLoad(t *testing.T) {
	sc := testSchema()
	c := NewBase(0, 4)
	require.True(t, c.Insert(0, point(0, 0, 0, 1)))
	blob, err := c.Serialize(sc, false)
	require.NoError(t, err)

	other := schema.New([]schema.Dimension{{Name: "Classification", Type: schema.Uint8}})
	_, err = LoadBase(0, 4, other, blob)
	assert.Error(t, err)
}

func TestBaseChunkForEachVisitsOnlyOccupiedSlotsWithAbsoluteIds(t *testing.T) {
	c := NewBase(100, 108)
	require.True(t, c.Insert(102, point(0, 0, 0, 1)))
	require.True(t, c.Insert(105, point(0, 0, 0, 2)))

	seen := map[uint64]uint32{}
	c.ForEach(func(nodeId uint64, info *data.PointInfo) {
		seen[nodeId] = info.Point.OriginID
	})

	assert.Equal(t, map[uint64]uint32{102: 1, 105: 2}, seen)
}

func TestBaseChunkMergeSlotPanicsOnCollision(t *testing.T) {
	c := NewBase(0, 4)
	require.True(t, c.Insert(1, point(0, 0, 0, 1)))
	assert.Panics(t, func() {
		c.MergeSlot(1, point(0, 0, 0, 2))
	})
}

func TestRefCountLifecycle(t *testing.T) {
	c := NewBase(0, 1)
	assert.Equal(t, int32(0), c.RefCount())
	assert.Equal(t, int32(1), c.Ref())
	assert.Equal(t, int32(0), c.Unref())
	assert.Panics(t, func() { c.Unref() }, "refcount must never go negative")
}
