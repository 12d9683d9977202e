// Package blobstore provides the storage abstraction for tensor frames.
//
// BlobStore is the interface for reading and writing named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap reads
//   - MemoryStore: In-process map, for tests and pipelines
//   - CachingStore: LRU of whole blobs in front of any other store
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3 with multipart uploads
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Missing blobs are reported with an error matching ErrNotFound.
package blobstore
