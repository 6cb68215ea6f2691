package benchmark_test

import (
	"context"
	"testing"

	"github.com/hupe1980/latchkv"
	"github.com/hupe1980/latchkv/testutil"
)

const (
	benchSeed = 4711

	keysSmall  = 10_000
	keysMedium = 100_000
)

// openBench opens a store sized by memBits. A small memBits pushes most of
// the log to the device.
func openBench(tb testing.TB, memBits uint, opts ...latchkv.Option) *latchkv.Store {
	tb.Helper()
	base := []latchkv.Option{
		latchkv.WithFunctions(latchkv.AddFunctions{}),
		latchkv.WithMemorySizeBits(memBits),
		latchkv.WithPageSizeBits(min(memBits-2, 20)),
		latchkv.WithIndexBits(18),
	}
	db, err := latchkv.Open(context.Background(), append(base, opts...)...)
	if err != nil {
		tb.Fatalf("open: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// loadKeys upserts keys 0..n-1 with their own number as value.
func loadKeys(tb testing.TB, db *latchkv.Store, n int) {
	tb.Helper()
	sess := db.NewSession()
	for _, k := range testutil.NewRNG(benchSeed).Shuffle(n) {
		if _, err := sess.Upsert(testutil.Key(k), latchkv.PutUint64(k), nil); err != nil {
			tb.Fatalf("load: %v", err)
		}
	}
	if err := sess.Close(context.Background()); err != nil {
		tb.Fatalf("load: %v", err)
	}
}

// drainEvery completes pending operations once a session holds more than
// limit of them.
func drainEvery(tb testing.TB, sess *latchkv.Session, limit int) {
	if sess.PendingCount() <= limit {
		return
	}
	if err := sess.CompletePending(context.Background(), true); err != nil {
		tb.Error(err)
	}
}
