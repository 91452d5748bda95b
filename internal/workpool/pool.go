// Package workpool implements a bounded task executor with a monotonic
// generation, replacing the source's manual add/join/go thread-pool idiom:
// Join waits for the current generation's tasks to drain; Reopen starts
// the next generation, after which Go accepts submissions again. Built on
// golang.org/x/sync/semaphore, the same bounded-fan-out primitive used
// across the retrieval pack's other concurrent services. Unlike
// errgroup.WithContext, a failing task never cancels its siblings: every
// submitted task runs to completion regardless of what other tasks in the
// same generation return, so one bad file never strands the rest of a
// batch mid-flight.
package workpool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Go when called against a generation that has
// already been Join()ed and not yet Reopen()ed.
var ErrClosed = errors.New("workpool: pool is closed, call Reopen before submitting more work")

// Pool bounds concurrent execution of submitted tasks to a fixed worker
// count, regardless of how many tasks are queued via Go; there is no
// explicit queue bound, matching the spec's "no explicit queue bound on
// the work pool" back-pressure policy.
type Pool struct {
	sem *semaphore.Weighted

	mu   sync.Mutex
	wg   *sync.WaitGroup
	open bool

	errMu    sync.Mutex
	firstErr error
}

// New returns a pool that runs at most concurrency tasks at once.
// concurrency is clamped to at least 1.
func New(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &Pool{sem: semaphore.NewWeighted(int64(concurrency))}
	p.reopenLocked()
	return p
}

func (p *Pool) reopenLocked() {
	p.wg = &sync.WaitGroup{}
	p.open = true
	p.errMu.Lock()
	p.firstErr = nil
	p.errMu.Unlock()
}

// Go submits fn to run on the pool once a worker slot is free. Returns
// ErrClosed if the current generation has already been Join()ed. fn
// always runs to completion once started: an error from one task never
// aborts tasks still waiting for a worker slot.
func (p *Pool) Go(fn func() error) error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return ErrClosed
	}
	wg, sem := p.wg, p.sem
	p.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sem.Acquire(context.Background(), 1); err != nil {
			p.recordErr(err)
			return
		}
		defer sem.Release(1)
		if err := fn(); err != nil {
			p.recordErr(err)
		}
	}()
	return nil
}

func (p *Pool) recordErr(err error) {
	p.errMu.Lock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	p.errMu.Unlock()
}

// Join blocks until every task submitted to the current generation has
// completed, then closes the generation to further submissions. It
// returns the first error returned by any task, if any; every other
// submitted task still runs to completion regardless.
func (p *Pool) Join() error {
	p.mu.Lock()
	wg := p.wg
	p.open = false
	p.mu.Unlock()

	wg.Wait()

	p.errMu.Lock()
	err := p.firstErr
	p.errMu.Unlock()
	return err
}

// Reopen starts a fresh generation, allowing Go to accept submissions
// again. Must be called after Join before further work is submitted.
func (p *Pool) Reopen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reopenLocked()
}

// IsOpen reports whether the current generation still accepts Go calls.
func (p *Pool) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}
