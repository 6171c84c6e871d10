package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_ExcludesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("a")
			defer km.Unlock("a")
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxActive, "at most one goroutine may hold key \"a\" at a time")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock("a")
	defer km.Unlock("a")

	done := make(chan struct{})
	go func() {
		km.Lock("b")
		km.Unlock("b")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key should not block")
	}
}

func TestKeyedMutex_ReleaseWakesWaiter(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock("a")

	acquired := make(chan struct{})
	go func() {
		km.Lock("a")
		close(acquired)
		km.Unlock("a")
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("waiter should still be blocked")
	default:
	}

	km.Unlock("a")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken after release")
	}
}

func TestKeyedMutex_WithLockReleasesOnError(t *testing.T) {
	km := NewKeyedMutex()

	err := km.WithLock("k", func() error {
		return assert.AnError
	})
	require.Equal(t, assert.AnError, err)

	// If WithLock had failed to release on error, this would deadlock.
	done := make(chan struct{})
	go func() {
		km.Lock("k")
		km.Unlock("k")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key was not released after body returned an error")
	}
}
