package main

import (
	"sync"
	"testing"
)

func TestReplInterrupt(t *testing.T) {
	sess := &replSession{}

	// Nothing running yet.
	sess.interrupt()

	ctx, finish := sess.begin()

	// Signals arrive on their own goroutine while the snippet runs.
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.interrupt()
		}()
	}
	wg.Wait()

	if ctx.Err() == nil {
		t.Fatal("interrupt did not cancel the running snippet")
	}
	finish()

	next, finishNext := sess.begin()
	defer finishNext()
	if next.Err() != nil {
		t.Error("an earlier interrupt leaked into the next snippet")
	}
}

func TestReplInterruptAfterFinish(t *testing.T) {
	sess := &replSession{}
	_, finish := sess.begin()
	finish()

	sess.interrupt()
	if sess.cancel != nil {
		t.Error("finished snippet still registered")
	}
}
