// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("tensors/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = tensor.Save(ctx, store, "out.pmto", result)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart streaming uploads through the transfer manager
//   - CRC32C checksums on writes
//   - Automatic pagination for listing
//   - S3-compatible endpoints via WithEndpoint
package s3
