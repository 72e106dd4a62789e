package server

import (
	"context"
	"sync"
)

// Tracker records the cancel func of every running execution so shutdown
// can stop them and wait for the sandbox to release their units.
type Tracker struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	next    uint64
	cancels map[uint64]context.CancelFunc
	closed  bool
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		cancels: make(map[uint64]context.CancelFunc),
	}
}

// Begin derives a cancellable context for one execution. The returned func
// must be called when the execution finishes. After CancelAll, Begin hands
// out contexts that are already cancelled.
func (t *Tracker) Begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		cancel()
		return ctx, func() {}
	}

	id := t.next
	t.next++
	t.cancels[id] = cancel
	t.wg.Add(1)

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.cancels, id)
			t.mu.Unlock()
			cancel()
			t.wg.Done()
		})
	}
}

// Len returns the number of running executions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cancels)
}

// CancelAll cancels every running execution and refuses new ones.
func (t *Tracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, cancel := range t.cancels {
		cancel()
		delete(t.cancels, id)
	}
}

// Wait blocks until every execution begun before CancelAll has called its
// done func, or ctx ends.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
