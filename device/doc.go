// Package device provides the storage below the in-memory part of the log.
//
// Two implementations are available:
//
//   - FileDevice stores the log in fixed-size segment files on a local
//     file system.
//   - BlobDevice stores one compressed, checksummed blob per segment on any
//     blobstore.BlobStore (memory, local directory, S3, MinIO).
//
// Device failures are returned as *Error, which matches ErrDevice with
// errors.Is.
package device
