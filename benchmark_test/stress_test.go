package benchmark_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/latchkv"
	"github.com/hupe1980/latchkv/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStress_Concurrency increments skewed counters from many sessions while
// the log spills to the device and checkpoints run, then checks that no
// increment was lost.
func TestStress_Concurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	db := openBench(t, 18, latchkv.WithLockSpinBudget(8))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const (
		numWorkers = 8
		numKeys    = 20_000
	)

	var (
		applied [numKeys]atomic.Uint64
		opsDone atomic.Int64
		wg      sync.WaitGroup
	)

	for w := range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := testutil.NewRNG(benchSeed + int64(w))
			sess := db.NewSession()
			inc := latchkv.PutUint64(1)

			for ctx.Err() == nil {
				for _, k := range rng.ZipfKeys(512, numKeys, 1.2) {
					st, err := sess.RMW(testutil.Key(k), inc, nil)
					if !assert.NoError(t, err) {
						return
					}
					if st != latchkv.StatusError {
						applied[k].Add(1)
					}
				}
				if !assert.NoError(t, sess.CompletePending(context.Background(), true)) {
					return
				}
				opsDone.Add(512)
			}
			assert.NoError(t, sess.Close(context.Background()))
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			_, err := db.Checkpoint(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			time.Sleep(500 * time.Millisecond)
		}
	}()

	wg.Wait()
	t.Logf("%d increments, tail %d", opsDone.Load(), db.Stats().TailAddress)

	sess := db.NewSession()
	for k := range uint64(numKeys) {
		want := applied[k].Load()
		if want == 0 {
			continue
		}
		var out latchkv.Output
		st, err := sess.Read(testutil.Key(k), nil, &out, nil)
		require.NoError(t, err)
		if st == latchkv.StatusPending {
			require.NoError(t, sess.CompletePending(context.Background(), true))
		}
		require.Equal(t, latchkv.StatusOK, out.Status, "key %d", k)
		require.Equal(t, want, latchkv.Uint64(out.Value), "key %d", k)
	}
}
