// Package chunk implements the in-memory bucket of points for a
// contiguous node-id range: the dense, permanently-resident Base variant
// and the paged, sparsely-indexed Sparse variant. Both are serializable
// and both track a live reference count pinned by Clippers.
package chunk

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/schema"
)

// DefaultCapacity is the per-node-id point capacity of a Sparse chunk slot,
// configurable per build; the spec's typical value is 1.
const DefaultCapacity = 1

// Chunk is the shared surface both variants implement.
type Chunk interface {
	// ChunkId returns the chunk's key.
	ChunkId() uint64
	// Insert attempts to place info at localId. It reports whether the
	// point was accepted; on rejection info is returned unchanged so the
	// caller can retry at a deeper node.
	Insert(localId uint64, info *data.PointInfo) (accepted bool)
	// Serialize renders the chunk's current contents to bytes.
	Serialize(sc schema.Schema, compressed bool) ([]byte, error)
	// Points returns every occupied PointInfo, for merge and for
	// draining a chunk before it is discarded.
	Points() []*data.PointInfo
	// Ref/Unref manage the Clipper-pinned reference count. Unref reports
	// the resulting count.
	Ref() int32
	Unref() int32
	RefCount() int32
	// Lock/Unlock guard mutation; Registry holds this around each Insert
	// and Serialize of a cold chunk.
	Lock()
	Unlock()
}

// base fields shared by both variants.
type base struct {
	id       uint64
	mu       sync.Mutex
	refcount int32
}

func (b *base) ChunkId() uint64 { return b.id }
func (b *base) Lock()           { b.mu.Lock() }
func (b *base) Unlock()         { b.mu.Unlock() }

func (b *base) Ref() int32 {
	return atomic.AddInt32(&b.refcount, 1)
}

func (b *base) Unref() int32 {
	n := atomic.AddInt32(&b.refcount, -1)
	if n < 0 {
		panic(fmt.Sprintf("chunk %d: refcount went negative", b.id))
	}
	return n
}

func (b *base) RefCount() int32 {
	return atomic.LoadInt32(&b.refcount)
}
