package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidBits)
	_, err = New(MaxBits + 1)
	assert.ErrorIs(t, err, ErrInvalidBits)

	x, err := New(4)
	require.NoError(t, err)
	assert.Equal(t, 16, x.Len())
	assert.Equal(t, 0, x.Used())
}

func TestIndex_CompareAndSwap(t *testing.T) {
	x, err := New(8)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), x.Head(42))
	assert.True(t, x.CompareAndSwap(42, 0, 64))
	assert.False(t, x.CompareAndSwap(42, 0, 128), "stale expectation")
	assert.Equal(t, uint64(64), x.Head(42))
	assert.Equal(t, uint64(64), x.Head(42+256), "same bucket")

	x.Store(7, 1<<50|99)
	assert.Equal(t, uint64(99), x.Head(7), "addresses are 48 bits")
	assert.Equal(t, 2, x.Used())

	x.TruncateBelow(100)
	assert.Equal(t, uint64(0), x.Head(7))
	assert.Equal(t, uint64(0), x.Head(42))
}

func TestIndex_ConcurrentPrepend(t *testing.T) {
	x, err := New(2)
	require.NoError(t, err)

	const workers, per = 8, 500
	var next sync.Mutex
	addr := uint64(64)
	alloc := func() uint64 {
		next.Lock()
		defer next.Unlock()
		addr += 8
		return addr
	}

	// Every installed head links to the head it replaced; the links must form
	// one chain covering all installs.
	var links sync.Map
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range per {
				a := alloc()
				for {
					old := x.Head(3)
					if x.CompareAndSwap(3, old, a) {
						links.Store(a, old)
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	n := 0
	for a := x.Head(3); a != 0; n++ {
		prev, ok := links.Load(a)
		require.True(t, ok)
		a = prev.(uint64)
	}
	assert.Equal(t, workers*per, n)
}
