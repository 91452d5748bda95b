package climber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/entwine_go/internal/geometry"
	"github.com/ecopia-map/entwine_go/internal/structure"
)

func testSetup() (structure.Structure, geometry.Bounds) {
	st := structure.Structure{
		BaseDepthBegin: 0,
		BaseDepthEnd:   2,
		ColdDepthBegin: 2,
		ColdDepthEnd:   6,
		Is3d:           true,
		ChunkPoints:    8,
	}
	bounds := geometry.New(geometry.Point3{}, geometry.Point3{X: 8, Y: 8, Z: 8}, true)
	return st, bounds
}

func TestClimberStartsAtRoot(t *testing.T) {
	st, bounds := testSetup()
	c := New(st, bounds)
	assert.Equal(t, uint64(0), c.NodeId())
	assert.Equal(t, uint64(0), c.Depth())
}

func TestMagnifyDescendsTowardPoint(t *testing.T) {
	st, bounds := testSetup()
	c := New(st, bounds)

	target := geometry.Point3{X: 7, Y: 7, Z: 7}
	c.Magnify(target)
	assert.Equal(t, uint64(1), c.Depth())
	assert.True(t, c.Bounds().Contains(target))

	c.Magnify(target)
	assert.Equal(t, uint64(2), c.Depth())
	assert.True(t, c.Bounds().Contains(target))
}

func TestChunkIdUnavailableInBaseOrNullRegion(t *testing.T) {
	st, bounds := testSetup()
	c := New(st, bounds)
	_, ok := c.ChunkId()
	assert.False(t, ok, "root is in the base region")
}

func TestChunkIdAvailableInColdRegion(t *testing.T) {
	st, bounds := testSetup()
	c := New(st, bounds)
	target := geometry.Point3{X: 1, Y: 1, Z: 1}
	for i := 0; i < int(st.ColdDepthBegin); i++ {
		c.Magnify(target)
	}
	id, ok := c.ChunkId()
	require.True(t, ok)
	assert.Equal(t, st.ChunkIdFor(c.NodeId()), id)
}

func TestAtMaxDepth(t *testing.T) {
	st, bounds := testSetup()
	c := New(st, bounds)
	target := geometry.Point3{X: 1, Y: 1, Z: 1}
	for c.Depth()+1 < st.ColdDepthEnd {
		require.False(t, c.AtMaxDepth())
		c.Magnify(target)
	}
	assert.True(t, c.AtMaxDepth())
}
