package clipper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingRegistry struct {
	mu      sync.Mutex
	clipped []uint64
}

func (r *recordingRegistry) Clip(chunkId uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clipped = append(r.clipped, chunkId)
}

func TestMarkIsIdempotent(t *testing.T) {
	reg := &recordingRegistry{}
	c := New(reg)
	c.Mark(5)
	c.Mark(5)
	assert.Equal(t, 1, c.Len())
}

func TestContainsReflectsMarkedSet(t *testing.T) {
	reg := &recordingRegistry{}
	c := New(reg)
	assert.False(t, c.Contains(1))
	c.Mark(1)
	assert.True(t, c.Contains(1))
}

func TestReleaseClipsEveryMarkedChunkExactlyOnce(t *testing.T) {
	reg := &recordingRegistry{}
	c := New(reg)
	c.Mark(1)
	c.Mark(2)
	c.Mark(3)

	c.Release()

	assert.ElementsMatch(t, []uint64{1, 2, 3}, reg.clipped)
}

func TestReleaseIsANoOpOnSecondCall(t *testing.T) {
	reg := &recordingRegistry{}
	c := New(reg)
	c.Mark(1)

	c.Release()
	c.Release()

	assert.Len(t, reg.clipped, 1, "a second Release must not re-clip")
}
