// Package blobstore abstracts where segment and array-group index files live.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in implementations
//
//   - LocalStore: local filesystem, optionally memory-mapped
//   - MemoryStore: in-memory, for tests
//   - CachingStore: chunk cache in front of another store (L2 for remote data)
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Reads take a context so remote range requests can be cancelled; use
// ReaderAt to hand a Blob to code that expects an io.ReaderAt.
package blobstore
