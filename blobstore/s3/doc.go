// Package s3 stores blobs in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("kv/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	dev, err := device.NewBlobDevice(store, device.BlobOptions{})
//	kv, err := latchkv.Open(latchkv.WithDevice(dev), latchkv.WithObjectStore(store))
//
// Small blobs are written with a single PutObject carrying a CRC32C
// checksum; blobs larger than the part size go through the multipart
// upload manager. Reads are ranged GETs.
//
// DDBCommitStore adds DynamoDB conditional writes for the CURRENT pointer
// of checkpoint manifests.
package s3
