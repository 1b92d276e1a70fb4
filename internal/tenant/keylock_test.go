package tenant

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that operations on the same organization name are serialized.
// Scope: Unit Test
// Expected: at most one holder per key at any time; entries are released afterwards.
// Test Case ID: LCK-01
func TestKeyLock_SerializesSameKey(t *testing.T) {
	l := newKeyLock()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("acme")
			defer unlock()
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

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, l.size())
}

// TestPurpose: Validates that overlapping multi-key locks taken in opposite order do not deadlock.
// Scope: Unit Test
// Expected: both goroutines finish.
// Test Case ID: LCK-02
func TestKeyLock_MultiKeyNoDeadlock(t *testing.T) {
	l := newKeyLock()
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); l.Lock("a", "b")() }()
			go func() { defer wg.Done(); l.Lock("b", "a")() }()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("multi-key locks deadlocked")
	}
	assert.Equal(t, 0, l.size())
}

func TestKeyLock_DuplicateKeys(t *testing.T) {
	l := newKeyLock()
	unlock := l.Lock("acme", "acme")
	assert.Equal(t, 1, l.size())
	unlock()
	assert.Equal(t, 0, l.size())
}
