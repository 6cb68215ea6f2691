package benchmark_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/latchkv"
	"github.com/hupe1980/latchkv/testutil"
)

// ============================================================================
// Workload Benchmarks - Realistic Production Patterns
// ============================================================================

// BenchmarkUpsert measures blind writes of fresh and of hot keys.
func BenchmarkUpsert(b *testing.B) {
	for _, keys := range []int{keysSmall, keysMedium} {
		b.Run("keys="+strconv.Itoa(keys), func(b *testing.B) {
			db := openBench(b, 26)
			sess := db.NewSession()
			value := latchkv.PutUint64(1)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := sess.Upsert(testutil.Key(uint64(i%keys)), value, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRead compares reads served from memory with reads that go to the
// device.
func BenchmarkRead(b *testing.B) {
	for _, tc := range []struct {
		name    string
		memBits uint
	}{
		{"memory", 26},
		{"device", 18},
	} {
		b.Run(tc.name, func(b *testing.B) {
			db := openBench(b, tc.memBits)
			loadKeys(b, db, keysMedium)
			keys := testutil.NewRNG(benchSeed).UniformKeys(4096, keysMedium)
			sess := db.NewSession()
			var out latchkv.Output

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := sess.Read(testutil.Key(keys[i%len(keys)]), nil, &out, nil); err != nil {
					b.Fatal(err)
				}
				drainEvery(b, sess, 64)
			}
			if err := sess.CompletePending(context.Background(), true); err != nil {
				b.Fatal(err)
			}
		})
	}
}

// BenchmarkMixedWorkload simulates concurrent sessions doing reads and
// increments over a skewed key space, at various read ratios.
func BenchmarkMixedWorkload(b *testing.B) {
	ratios := []int{50, 80, 95, 99}

	for _, readPct := range ratios {
		b.Run("read="+strconv.Itoa(readPct)+"%", func(b *testing.B) {
			db := openBench(b, 24)
			loadKeys(b, db, keysMedium)

			var reads, writes int64

			b.ReportAllocs()
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				rng := testutil.NewRNG(benchSeed + time.Now().UnixNano())
				ops := rng.Workload(8192, keysMedium, 1.1, testutil.Mix{
					Read: float64(readPct),
					RMW:  float64(100 - readPct),
				})
				sess := db.NewSession()
				defer sess.Close(context.Background())
				var out latchkv.Output
				inc := latchkv.PutUint64(1)

				for i := 0; pb.Next(); i++ {
					op := ops[i%len(ops)]
					k := testutil.Key(op.Key)
					var err error
					if op.Kind == testutil.Read {
						_, err = sess.Read(k, nil, &out, nil)
						atomic.AddInt64(&reads, 1)
					} else {
						_, err = sess.RMW(k, inc, nil)
						atomic.AddInt64(&writes, 1)
					}
					if err != nil {
						b.Error(err)
						return
					}
					drainEvery(b, sess, 128)
				}
			})

			b.StopTimer()
			totalOps := float64(reads + writes)
			b.ReportMetric(totalOps/b.Elapsed().Seconds(), "ops/sec")
			b.ReportMetric(float64(reads)/b.Elapsed().Seconds(), "reads/sec")
			b.ReportMetric(float64(writes)/b.Elapsed().Seconds(), "writes/sec")
		})
	}
}

// BenchmarkCheckpoint measures a fold-over checkpoint of a loaded store.
func BenchmarkCheckpoint(b *testing.B) {
	db := openBench(b, 24)
	loadKeys(b, db, keysSmall)
	sess := db.NewSession()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for k := range uint64(100) {
			if _, err := sess.RMW(testutil.Key(k), latchkv.PutUint64(1), nil); err != nil {
				b.Fatal(err)
			}
		}
		if err := sess.CompletePending(ctx, true); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if _, err := db.Checkpoint(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
