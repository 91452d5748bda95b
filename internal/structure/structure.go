// Package structure implements the pure-arithmetic node addressing scheme:
// depth boundaries, prefix-sum base offsets, and chunk-id derivation. It
// holds no mutable state and performs no I/O.
package structure

import "fmt"

// Subset identifies one shard of a global tree: this builder owns shard
// Id of Of, 0 <= Id < Of.
type Subset struct {
	Id, Of uint64
}

// Structure is the immutable per-build addressing configuration.
type Structure struct {
	NullDepthBegin, NullDepthEnd   uint64
	BaseDepthBegin, BaseDepthEnd   uint64
	ColdDepthBegin, ColdDepthEnd   uint64
	Is3d                           bool
	ChunkPoints                    uint64 // ids per cold chunk span, at coldDepthBegin granularity
	Subset                         *Subset
}

// branching is 8 for octrees, 4 for quadtrees.
func (s Structure) branching() uint64 {
	if s.Is3d {
		return 8
	}
	return 4
}

// levelBase is the prefix sum of branching^k for k in [0, depth): the id of
// the first node at the given depth, when depth 0 is the single root and
// ids are assigned breadth-first, depth by depth.
func (s Structure) levelBase(depth uint64) uint64 {
	b := s.branching()
	if depth == 0 {
		return 0
	}
	// sum_{k=0}^{depth-1} b^k = (b^depth - 1) / (b - 1)
	total := uint64(0)
	pow := uint64(1)
	for k := uint64(0); k < depth; k++ {
		total += pow
		pow *= b
	}
	return total
}

// levelCount is the number of node ids at the given depth: branching^depth.
func (s Structure) levelCount(depth uint64) uint64 {
	b := s.branching()
	pow := uint64(1)
	for k := uint64(0); k < depth; k++ {
		pow *= b
	}
	return pow
}

// BaseIndexBegin / BaseIndexEnd bound the contiguous base-chunk id range,
// spanning every node id at depths [BaseDepthBegin, BaseDepthEnd).
func (s Structure) BaseIndexBegin() uint64 { return s.levelBase(s.BaseDepthBegin) }
func (s Structure) BaseIndexEnd() uint64   { return s.levelBase(s.BaseDepthEnd) }

// ColdIndexBegin is the first node id belonging to the cold, paged region.
func (s Structure) ColdIndexBegin() uint64 { return s.levelBase(s.ColdDepthBegin) }

// ChunkSpan is the number of node ids covered by a single cold chunk. It is
// fixed for the whole cold region: the id-count of one full level at
// ColdDepthBegin, scaled by ChunkPoints if configured smaller than a level.
func (s Structure) ChunkSpan() uint64 {
	span := s.levelCount(s.ColdDepthBegin)
	if s.ChunkPoints != 0 && s.ChunkPoints < span {
		return s.ChunkPoints
	}
	return span
}

// IsNull reports whether nodeId lies in the synthetic single-root region.
func (s Structure) IsNull(nodeId uint64) bool {
	return nodeId >= s.levelBase(s.NullDepthBegin) && nodeId < s.levelBase(s.NullDepthEnd)
}

// IsBase reports whether nodeId lies in the permanently resident base
// chunk's id range.
func (s Structure) IsBase(nodeId uint64) bool {
	return nodeId >= s.BaseIndexBegin() && nodeId < s.BaseIndexEnd()
}

// ChunkIdFor derives the chunk id owning nodeId, per the arithmetic
// invariant: chunkId = coldIndexBegin + ((nodeId - coldIndexBegin) /
// chunkSpan) * chunkSpan. Callers must not invoke this for base or null
// ids; it is only meaningful in the cold region.
func (s Structure) ChunkIdFor(nodeId uint64) uint64 {
	begin := s.ColdIndexBegin()
	span := s.ChunkSpan()
	if span == 0 {
		return begin
	}
	return begin + ((nodeId - begin) / span) * span
}

// ChildBase returns the id of child 0 at depth+1 given the parent's depth
// and the parent's own base-relative offset within its level, expressed
// directly as the parent nodeId: childBase(parentId, depth) = levelBase
// (depth+1) + (parentId - levelBase(depth)) * branching.
func (s Structure) ChildBase(parentId, depth uint64) uint64 {
	parentLevelBase := s.levelBase(depth)
	childLevelBase := s.levelBase(depth + 1)
	return childLevelBase + (parentId-parentLevelBase)*s.branching()
}

// ChildId computes the id of child index c (0 <= c < branching) of the node
// at parentId/depth.
func (s Structure) ChildId(parentId, depth uint64, c int) uint64 {
	return s.ChildBase(parentId, depth) + uint64(c)
}

// SubsetPostfix returns the stable artifact tag for subset builds, e.g.
// "-3" for subset id 3; empty for whole (non-subset) builds.
func (s Structure) SubsetPostfix() string {
	if s.Subset == nil {
		return ""
	}
	return fmt.Sprintf("-%d", s.Subset.Id)
}

// OwnsChild reports whether, at the configured subset depth (ColdDepthBegin,
// matching the depth at which the subset predicate is applied per the
// external spec), the given child node id belongs to this structure's
// subset shard. Non-subset structures own every id.
func (s Structure) OwnsChild(childId uint64) bool {
	if s.Subset == nil {
		return true
	}
	return childId%s.Subset.Of == s.Subset.Id
}
