// Package climber implements the stateful descent from a tree's root
// toward a target point, generalizing GridNode's lazy descend-and-insert
// walk into an id-addressed, chunk-oriented tree.
package climber

import (
	"github.com/ecopia-map/entwine_go/internal/geometry"
	"github.com/ecopia-map/entwine_go/internal/structure"
)

// Climber is a transient per-insert value: (bounds, depth, nodeId). It is
// never shared across goroutines; each insert constructs and drives its
// own Climber to completion.
type Climber struct {
	st     structure.Structure
	bounds geometry.Bounds
	depth  uint64
	nodeId uint64
}

// New starts a Climber at the tree root: global bounds, depth 0, node id 0.
func New(st structure.Structure, globalBounds geometry.Bounds) *Climber {
	return &Climber{st: st, bounds: globalBounds, depth: 0, nodeId: 0}
}

// Bounds returns the current node's region.
func (c *Climber) Bounds() geometry.Bounds { return c.bounds }

// Depth returns the current depth.
func (c *Climber) Depth() uint64 { return c.depth }

// NodeId returns the current node's id.
func (c *Climber) NodeId() uint64 { return c.nodeId }

// ChunkId returns the chunk id owning the current node, or false if the
// current node lies in the null or base region (chunk ids are only
// meaningful for cold nodes).
func (c *Climber) ChunkId() (uint64, bool) {
	if c.st.IsNull(c.nodeId) || c.st.IsBase(c.nodeId) {
		return 0, false
	}
	return c.st.ChunkIdFor(c.nodeId), true
}

// AtMaxDepth reports whether the climber has reached the terminal cold
// depth, with no room to descend further; callers should count this as a
// fall-through.
func (c *Climber) AtMaxDepth() bool {
	return c.depth+1 >= c.st.ColdDepthEnd
}

// Magnify steps into the child octant/quadrant containing p: halves the
// relevant bounds axes (lower half owns ties), advances nodeId via the
// Structure's branching arithmetic, and increments depth.
func (c *Climber) Magnify(p geometry.Point3) {
	idx := c.bounds.ChildIndex(p)
	c.nodeId = c.st.ChildId(c.nodeId, c.depth, idx)
	c.bounds = c.bounds.Octant(idx)
	c.depth++
}
