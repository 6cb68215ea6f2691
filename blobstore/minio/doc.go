// Package minio provides a BlobStore on MinIO and other S3-compatible
// storage (Ceph, Garage, SeaweedFS) using the native MinIO client.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "kv/")
//	dev, err := device.NewBlobDevice(ctx, store, device.BlobOptions{Prefix: "log/"})
//	kv, err := latchkv.Open(ctx, latchkv.WithDevice(dev), latchkv.WithObjectStore(store))
//
// The store needs no AWS dependencies, which makes it a good fit for
// air-gapped deployments.
package minio
