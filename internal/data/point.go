// Package data defines the point record types that flow from a Reader,
// through a Climber's descent, into a Chunk slot.
package data

import "github.com/ecopia-map/entwine_go/internal/geometry"

// Point is one point's coordinate plus its packed dimension record, whose
// byte layout is described by the build's schema.Schema.
type Point struct {
	Position geometry.Point3
	Record   []byte // packed per-dimension bytes, schema.RecordSize() long
	OriginID uint32
	Index    uint32 // this point's position within its origin file, for Uniqueness checks
}

// PointInfo is the owned unit that moves between PointPool and a Chunk
// slot: exactly one Chunk slot, or the pool, owns a given PointInfo at any
// time. next is used only while the value sits on a PointPool intrusive
// stack.
type PointInfo struct {
	Point Point
	next  *PointInfo
}

// Next returns the intrusive-stack successor, valid only while the
// PointInfo is held by a pointpool.Stack.
func (p *PointInfo) Next() *PointInfo { return p.next }

// SetNext sets the intrusive-stack successor. Exported for pointpool,
// which lives in a different package but must splice these directly to
// keep acquire/release O(1).
func (p *PointInfo) SetNext(n *PointInfo) { p.next = n }
