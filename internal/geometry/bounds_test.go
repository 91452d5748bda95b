package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpanderAbsorbsPoints(t *testing.T) {
	b := Expander(true)
	require.False(t, b.Valid())

	b.Grow(Point3{X: 1, Y: 2, Z: 3})
	b.Grow(Point3{X: -1, Y: 5, Z: 0})

	require.True(t, b.Valid())
	assert.Equal(t, Point3{X: -1, Y: 2, Z: 0}, b.Min)
	assert.Equal(t, Point3{X: 1, Y: 5, Z: 3}, b.Max)
}

func TestContainsIsClosedInterval(t *testing.T) {
	b := New(Point3{0, 0, 0}, Point3{10, 10, 10}, true)
	assert.True(t, b.Contains(Point3{0, 0, 0}))
	assert.True(t, b.Contains(Point3{10, 10, 10}))
	assert.False(t, b.Contains(Point3{10.1, 0, 0}))
	assert.False(t, b.Contains(Point3{-0.1, 0, 0}))
}

func TestChildIndexTieBreakGoesLowerHalf(t *testing.T) {
	b := New(Point3{0, 0, 0}, Point3{10, 10, 10}, true)
	center := b.Center()

	assert.Equal(t, 0, b.ChildIndex(center), "a point exactly at center owns every axis's lower half")
	assert.Equal(t, 7, b.ChildIndex(Point3{10, 10, 10}))
}

func TestOctantPartitionsExactly(t *testing.T) {
	b := New(Point3{0, 0, 0}, Point3{8, 8, 8}, true)
	for c := 0; c < 8; c++ {
		child := b.Octant(c)
		mid := child.Center()
		assert.Equal(t, c, b.ChildIndex(mid), "octant %d's own center must resolve back to index %d", c, c)
	}
}

func Test2dIgnoresZ(t *testing.T) {
	b := New(Point3{0, 0, 0}, Point3{10, 10, 0}, false)
	assert.True(t, b.Contains(Point3{5, 5, 999}))
	assert.Equal(t, float64(0), b.Octant(4).Min.Z, "bit 2 (Z half) is a no-op in 2D")
}
