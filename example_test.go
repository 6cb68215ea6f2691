package latchkv_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/latchkv"
	"github.com/hupe1980/latchkv/blobstore"
	"github.com/hupe1980/latchkv/device"
)

// Example_upsertRead demonstrates a blind write followed by a read.
func Example_upsertRead() {
	ctx := context.Background()
	db, err := latchkv.Open(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	sess := db.NewSession()
	if _, err := sess.Upsert(latchkv.PutUint64(1), latchkv.PutUint64(23), nil); err != nil {
		log.Fatal(err)
	}

	var out latchkv.Output
	status, err := sess.Read(latchkv.PutUint64(1), nil, &out, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(status, latchkv.Uint64(out.Value))
	// Output: OK 23
}

// Example_rmw demonstrates counters kept with read-modify-write.
func Example_rmw() {
	ctx := context.Background()
	db, err := latchkv.Open(ctx, latchkv.WithFunctions(latchkv.AddFunctions{}))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	sess := db.NewSession()
	for range 3 {
		if _, err := sess.RMW([]byte("visits:1"), latchkv.PutUint64(1), nil); err != nil {
			log.Fatal(err)
		}
	}

	var out latchkv.Output
	if _, err := sess.Read([]byte("visits:1"), nil, &out, nil); err != nil {
		log.Fatal(err)
	}
	fmt.Println(latchkv.Uint64(out.Value))
	// Output: 3
}

// Example_token demonstrates waiting for a single operation.
func Example_token() {
	ctx := context.Background()
	db, err := latchkv.Open(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	sess := db.NewSession()
	sess.Upsert(latchkv.PutUint64(7), latchkv.PutUint64(49), nil)

	t := sess.ReadAsync(latchkv.PutUint64(7), nil, nil)
	status, err := t.Wait(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(status, latchkv.Uint64(t.Output().Value))
	// Output: OK 49
}

// Example_checkpoint demonstrates recovering a store from a checkpoint.
func Example_checkpoint() {
	ctx := context.Background()
	bucket := blobstore.NewMemoryStore()

	open := func(opts ...latchkv.Option) *latchkv.Store {
		dev, err := device.NewBlobDevice(ctx, bucket, device.BlobOptions{Prefix: "log/"})
		if err != nil {
			log.Fatal(err)
		}
		db, err := latchkv.Open(ctx, append([]latchkv.Option{
			latchkv.WithDevice(dev),
			latchkv.WithObjectStore(bucket),
		}, opts...)...)
		if err != nil {
			log.Fatal(err)
		}
		return db
	}

	db := open()
	db.NewSession().Upsert(latchkv.PutUint64(1), latchkv.PutUint64(100), nil)
	if _, err := db.Checkpoint(ctx); err != nil {
		log.Fatal(err)
	}
	db.Close()

	db = open(latchkv.WithRecover())
	defer db.Close()

	var out latchkv.Output
	sess := db.NewSession()
	if st, _ := sess.Read(latchkv.PutUint64(1), nil, &out, nil); st == latchkv.StatusPending {
		sess.CompletePending(ctx, true)
	}
	fmt.Println(latchkv.Uint64(out.Value))
	// Output: 100
}
