// Package latchkv provides an embedded, latch-free, log-structured key-value
// store for Go.
//
// Records live in a hybrid log: the newest pages are in memory and open to
// in-place updates, older pages are read-only, and the oldest pages live on a
// storage device only. A hash index maps every key to the newest record of
// its chain. Each record starts with an 8-byte header that holds, in a single
// machine word, a reader/writer lock, tombstone and validity flags, the
// checkpoint version and the backward link of the chain. All coordination
// between goroutines happens through atomic operations on these words.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := latchkv.Open(ctx)
//	defer store.Close()
//
//	sess := store.NewSession()
//	sess.Upsert(latchkv.PutUint64(1), latchkv.PutUint64(23), nil)
//
//	var out latchkv.Output
//	status, err := sess.Read(latchkv.PutUint64(1), nil, &out, nil)
//
// # Pending Operations
//
// An operation that needs the device, or that meets a contended record
// lock, returns StatusPending instead of blocking. There are two ways to
// finish it:
//
//	// 1. Drain the session. Outputs are filled in place and a
//	//    CompletionHandler on the Functions is told about each operation.
//	sess.CompletePending(ctx, true)
//
//	// 2. Use a token.
//	t := sess.ReadAsync(key, nil, nil)
//	status, err := t.Wait(ctx)
//
// # Devices
//
// The on-device part of the log goes to a device.Device. FileDevice writes
// segment files to a directory; BlobDevice stores compressed segments in any
// blobstore.BlobStore, including S3 and MinIO:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("kv/"))
//	dev, _ := device.NewBlobDevice(ctx, store, device.BlobOptions{Prefix: "log/"})
//	db, _ := latchkv.Open(ctx, latchkv.WithDevice(dev), latchkv.WithObjectStore(store))
//
// # Checkpoints
//
// Checkpoint flushes the log and commits a manifest to the object store.
// Open with WithRecover restores the latest one.
package latchkv
