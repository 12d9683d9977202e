// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible services such as Ceph,
// SeaweedFS and Garage, without pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minioblob.Dial(ctx, minioblob.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "tensors",
//	    Prefix:    "runs/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	img, err := tensor.Load[float32](ctx, store, "image.pmto")
//
// An existing client can be wrapped directly:
//
//	store := minioblob.NewStore(client, "tensors", "runs/")
package minio
