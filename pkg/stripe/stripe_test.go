package stripe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize, New(0).Size())
	assert.Equal(t, DefaultSize, New(-3).Size())
	assert.Equal(t, 3, New(3).Size())
}

func TestIndex_Stable(t *testing.T) {
	l := New(16)
	for _, key := range []string{"/pool/git/wc-1", "/pool/git/wc-2", ""} {
		idx := l.Index(key)
		assert.Equal(t, idx, l.Index(key))
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 16)
	}
}

func TestWith_SameKeySerializes(t *testing.T) {
	l := New(4)

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.With("same", func() error {
				n := active.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestLock_DifferentStripesDoNotBlock(t *testing.T) {
	l := New(64)

	a, b := "key-a", "key-b"
	for i := 0; l.Index(a) == l.Index(b); i++ {
		b = b + "x"
		require.Less(t, i, 1000, "could not find keys on distinct stripes")
	}

	unlockA := l.Lock(a)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock(b)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different stripe blocked")
	}
}
