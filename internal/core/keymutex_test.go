package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	t.Parallel()

	var km keyedMutex
	var active, maxActive atomic.Int32

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			unlock := km.Lock("a")
			defer unlock()
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		})
	}
	wg.Wait()

	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrent holders of one key = %d, want 1", got)
	}
	if got := km.len(); got != 0 {
		t.Errorf("keyedMutex holds %d entries after all unlocks, want 0", got)
	}
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	var km keyedMutex
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("locking key b blocked while key a was held")
	}
	if got := km.len(); got != 1 {
		t.Errorf("keyedMutex holds %d entries, want 1", got)
	}
}
