package pointpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireOneGrowsInBlocks(t *testing.T) {
	p := New(16)
	assert.Equal(t, 0, p.Allocated())

	pi := p.AcquireOne()
	require.NotNil(t, pi)
	assert.Equal(t, blockSize, p.Allocated(), "first acquire triggers exactly one block allocation")
	assert.Len(t, pi.Point.Record, 16)
}

func TestReleaseOneReturnsToFreeListAndZeroesPayload(t *testing.T) {
	p := New(4)
	pi := p.AcquireOne()
	pi.Point.OriginID = 42
	pi.Point.Record[0] = 0xFF

	p.ReleaseOne(pi)

	got := p.AcquireOne()
	assert.Same(t, pi, got, "the freed node is reused before a new block is grown")
	assert.Equal(t, uint32(0), got.Point.OriginID)
	assert.Equal(t, byte(0), got.Point.Record[0])
}

func TestAcquireReusesReleasedNodesBeforeGrowingAgain(t *testing.T) {
	p := New(0)
	stack := p.Acquire(10)
	assert.Equal(t, blockSize, p.Allocated())
	assert.Equal(t, 10, stack.Len())

	p.Release(stack)
	assert.Equal(t, 0, stack.Len(), "Release/Splice empties the source stack")

	p.Acquire(10)
	assert.Equal(t, blockSize, p.Allocated(), "reused from the free list, no second block grown")
}

func TestStackPushPopOrderIsLIFO(t *testing.T) {
	p := New(0)
	a := p.AcquireOne()
	b := p.AcquireOne()

	var s Stack
	s.Push(a)
	s.Push(b)

	assert.Same(t, b, s.Pop())
	assert.Same(t, a, s.Pop())
	assert.Nil(t, s.Pop())
}
