// Package blobstore abstracts the object storage that holds checkpoint
// manifests and, through the blob device, the on-device part of the log.
//
// Implementations must be safe for concurrent use:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error   // atomic replace
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// # Built-in Implementations
//
//   - MemoryStore: in-process maps, for tests and volatile stores
//   - LocalStore: files on the local file system, read through mmap
//   - s3.Store: Amazon S3, with multipart uploads for large blobs
//   - s3.DDBCommitStore: S3 plus DynamoDB conditional writes for CURRENT
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
