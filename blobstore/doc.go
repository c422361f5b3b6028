// Package blobstore abstracts the object storage that segment exports are
// written to.
//
// # Implementations
//
//   - MemoryStore: in-process map, for tests and dry runs
//   - LocalStore: a directory on the local file system; reads are mmapped
//   - s3.Store: Amazon S3 with multipart uploads and range reads
//   - minio.Store: MinIO and other S3-compatible services
//
// Writes are atomic per blob: readers never observe a partially written
// blob. All implementations are safe for concurrent use.
package blobstore
