package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersStartAtZero(t *testing.T) {
	var s Stats
	assert.Zero(t, s.NumPoints())
	assert.Zero(t, s.NumOutOfBounds())
	assert.Zero(t, s.NumFallThrough())
}

func TestConcurrentAddsAreRaceFree(t *testing.T) {
	var s Stats
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddPoint()
			s.AddOutOfBounds()
			s.AddFallThrough()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, s.NumPoints())
	assert.EqualValues(t, 100, s.NumOutOfBounds())
	assert.EqualValues(t, 100, s.NumFallThrough())
}

func TestAddNFoldsShardTotals(t *testing.T) {
	var s Stats
	s.AddN(10, 2, 1)
	s.AddN(5, 0, 0)
	snap := s.Snapshot()
	assert.Equal(t, Snapshot{NumPoints: 15, NumOutOfBounds: 2, NumFallThrough: 1}, snap)
}

func TestSnapshotLoadRoundTrip(t *testing.T) {
	var s Stats
	s.AddN(7, 3, 1)
	snap := s.Snapshot()

	var restored Stats
	restored.Load(snap)
	assert.Equal(t, snap, restored.Snapshot())
}
