// Package geometry provides the axis-aligned bounding box used to describe
// build extents and the per-node regions a Climber descends through.
package geometry

import "math"

// Point3 is a plain 3D coordinate. Z is ignored when a Bounds is 2D.
type Point3 struct {
	X, Y, Z float64
}

// Bounds is an axis-aligned box (min, max) with a 2D/3D flag. The zero value
// is not a valid Bounds; use Expander() to build one incrementally.
type Bounds struct {
	Min, Max Point3
	Is3d     bool
}

// Expander returns the sentinel bounds that absorbs any point via Grow:
// min = +Inf, max = -Inf on every axis.
func Expander(is3d bool) Bounds {
	inf := math.Inf(1)
	return Bounds{
		Min:  Point3{inf, inf, inf},
		Max:  Point3{-inf, -inf, -inf},
		Is3d: is3d,
	}
}

// New builds a Bounds from explicit min/max corners.
func New(min, max Point3, is3d bool) Bounds {
	return Bounds{Min: min, Max: max, Is3d: is3d}
}

// Grow expands the box, if necessary, to contain p. Safe to call
// concurrently only if the caller serializes access (Builder does this
// under its own mutex during bounds inference).
func (b *Bounds) Grow(p Point3) {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	if b.Is3d {
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
}

// GrowZ folds a Z range into the box without touching X/Y, used when a
// build's horizontal extent is trusted from headers but Z needs a full
// point-stream pass.
func (b *Bounds) GrowZ(zMin, zMax float64) {
	b.Min.Z = math.Min(b.Min.Z, zMin)
	b.Max.Z = math.Max(b.Max.Z, zMax)
}

// Valid reports whether the box is non-empty (min <= max component-wise).
func (b Bounds) Valid() bool {
	if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y {
		return false
	}
	if b.Is3d && b.Min.Z > b.Max.Z {
		return false
	}
	return true
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point3 {
	c := Point3{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
	}
	if b.Is3d {
		c.Z = (b.Min.Z + b.Max.Z) / 2
	}
	return c
}

// Contains reports whether p falls within the box, inclusive of both the
// min and the max faces: a plain closed-interval test used for the outer
// bbox check. Tie-breaking at a child boundary during descent is
// ChildIndex's job, not this one's.
func (b Bounds) Contains(p Point3) bool {
	if p.X < b.Min.X || p.X > b.Max.X {
		return false
	}
	if p.Y < b.Min.Y || p.Y > b.Max.Y {
		return false
	}
	if b.Is3d && (p.Z < b.Min.Z || p.Z > b.Max.Z) {
		return false
	}
	return true
}

// Octant returns the child bounds for octant/quadrant index c, using the
// same bit layout as ChildIndex: bit 0 = X half, bit 1 = Y half,
// bit 2 = Z half (ignored in 2D). The lower half owns ties, so a point
// exactly at the center goes to the "0" child on that axis.
func (b Bounds) Octant(c int) Bounds {
	center := b.Center()
	child := b
	if c&1 == 0 {
		child.Max.X = center.X
	} else {
		child.Min.X = center.X
	}
	if c&2 == 0 {
		child.Max.Y = center.Y
	} else {
		child.Min.Y = center.Y
	}
	if b.Is3d {
		if c&4 == 0 {
			child.Max.Z = center.Z
		} else {
			child.Min.Z = center.Z
		}
	}
	return child
}

// ChildIndex computes the octant/quadrant index of p within b, using the
// lower-half-owns-ties rule (strict less-than keeps the point in the "0"
// half on that axis).
func (b Bounds) ChildIndex(p Point3) int {
	center := b.Center()
	c := 0
	if p.X > center.X {
		c |= 1
	}
	if p.Y > center.Y {
		c |= 2
	}
	if b.Is3d && p.Z > center.Z {
		c |= 4
	}
	return c
}

// Floor/Ceil to the nearest cube boundary is not required by this package;
// bounds inference performs floor/ceil at the Builder layer where the
// configured resolution is known.
