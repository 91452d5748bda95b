// Package pointpool implements the fixed-size-record arena: a single
// free list of PointInfo nodes, each carrying its own fixed-size record
// buffer (data bytes are not pooled separately from the headers), with
// O(1) intrusive-stack acquire/release/splice. Grounded on
// the array-plus-freelist shape of a trivial node pool, generalized from a
// single fixed-capacity array to block-allocated growth so an unbounded
// input stream never exhausts the arena.
package pointpool

import (
	"sync"

	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/geometry"
)

const blockSize = 4096

// Stack is an intrusive singly linked stack of *data.PointInfo. The zero
// value is an empty stack.
type Stack struct {
	head *data.PointInfo
	tail *data.PointInfo
	size int
}

// Push adds one node to the top of the stack, O(1).
func (s *Stack) Push(p *data.PointInfo) {
	p.SetNext(s.head)
	if s.head == nil {
		s.tail = p
	}
	s.head = p
	s.size++
}

// Pop detaches and returns the top node, or nil if empty.
func (s *Stack) Pop() *data.PointInfo {
	if s.head == nil {
		return nil
	}
	p := s.head
	s.head = p.Next()
	if s.head == nil {
		s.tail = nil
	}
	p.SetNext(nil)
	s.size--
	return p
}

// Len reports the number of nodes currently on the stack.
func (s *Stack) Len() int { return s.size }

// Splice concatenates other onto the top of s in O(1), leaving other empty.
func (s *Stack) Splice(other *Stack) {
	if other.head == nil {
		return
	}
	other.tail.SetNext(s.head)
	if s.head == nil {
		s.tail = other.tail
	}
	s.head = other.head
	s.size += other.size
	other.head = nil
	other.tail = nil
	other.size = 0
}

// Pool is the mutex-guarded arena of PointInfo nodes, block-allocating new
// storage as needed. recordSize is the fixed byte width of each point's
// packed dimension record (schema.Schema.RecordSize()).
type Pool struct {
	mu         sync.Mutex
	free       Stack
	recordSize int
	allocated  int
}

// New returns an empty arena for records of the given fixed size.
func New(recordSize int) *Pool {
	return &Pool{recordSize: recordSize}
}

// Acquire returns a Stack of n PointInfo nodes, taken from the free list
// and topped up with a fresh block allocation as needed. Freshly allocated
// and ReleaseOne'd nodes are zeroed; nodes returned through Release keep
// whatever payload they held.
func (p *Pool) Acquire(n int) *Stack {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := &Stack{}
	for i := 0; i < n; i++ {
		out.Push(p.popOneLocked())
	}
	return out
}

// AcquireOne returns a single fresh PointInfo, equivalent to Acquire(1)
// but avoiding a Stack allocation on the hot per-point path.
func (p *Pool) AcquireOne() *data.PointInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popOneLocked()
}

func (p *Pool) popOneLocked() *data.PointInfo {
	if p.free.Len() == 0 {
		p.growLocked()
	}
	return p.free.Pop()
}

func (p *Pool) growLocked() {
	for i := 0; i < blockSize; i++ {
		pi := &data.PointInfo{Point: data.Point{Record: make([]byte, p.recordSize)}}
		p.free.Push(pi)
	}
	p.allocated += blockSize
}

// Release concatenates stack back onto the free list in O(1). It does not
// clear the nodes' payloads; use ReleaseOne for a node that must come back
// zeroed.
func (p *Pool) Release(stack *Stack) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free.Splice(stack)
}

// ReleaseOne returns a single node to the free list, resetting its point
// payload first.
func (p *Pool) ReleaseOne(pi *data.PointInfo) {
	pi.Point.Position = geometry.Point3{}
	pi.Point.OriginID = 0
	pi.Point.Index = 0
	for i := range pi.Point.Record {
		pi.Point.Record[i] = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free.Push(pi)
}

// Allocated returns the total number of PointInfo nodes ever block-
// allocated by this arena, used for the Registry's chunk-memory progress
// accounting.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}
