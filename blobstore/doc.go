// Package blobstore is the storage abstraction for persisted index
// artifacts.
//
// A [Store] holds immutable named blobs. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - [LocalStore]: a directory on the local file system
//   - [MemoryStore]: in-process, for tests
//   - s3.Store: Amazon S3 via aws-sdk-go-v2
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
