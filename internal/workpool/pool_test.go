package workpool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoRunsSubmittedTasks(t *testing.T) {
	p := New(4)
	var ran int64
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Go(func() error {
			atomic.AddInt64(&ran, 1)
			return nil
		}))
	}
	require.NoError(t, p.Join())
	assert.EqualValues(t, 20, ran)
}

func TestJoinPropagatesFirstError(t *testing.T) {
	p := New(2)
	boom := errors.New("boom")
	require.NoError(t, p.Go(func() error { return boom }))
	err := p.Join()
	assert.ErrorIs(t, err, boom)
}

func TestGoAfterJoinReturnsErrClosed(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Go(func() error { return nil }))
	require.NoError(t, p.Join())

	err := p.Go(func() error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReopenAllowsFurtherSubmission(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Go(func() error { return nil }))
	require.NoError(t, p.Join())

	p.Reopen()
	assert.True(t, p.IsOpen())
	require.NoError(t, p.Go(func() error { return nil }))
	require.NoError(t, p.Join())
}

func TestOneTaskErrorDoesNotAbortSiblingTasks(t *testing.T) {
	p := New(1)
	boom := errors.New("boom")
	var ran int64

	require.NoError(t, p.Go(func() error { return boom }))
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Go(func() error {
			atomic.AddInt64(&ran, 1)
			return nil
		}))
	}

	err := p.Join()
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 5, ran, "every sibling task still ran to completion")
}

func TestConcurrencyIsBounded(t *testing.T) {
	const limit = 3
	p := New(limit)
	var current, max int64

	for i := 0; i < 30; i++ {
		require.NoError(t, p.Go(func() error {
			n := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&max)
				if n <= old || atomic.CompareAndSwapInt64(&max, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		}))
	}
	require.NoError(t, p.Join())
	assert.LessOrEqual(t, atomic.LoadInt64(&max), int64(limit))
}
