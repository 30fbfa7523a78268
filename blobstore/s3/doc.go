// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//	err = idx.SaveTo(ctx, store, "products")
//
// Small blobs are written with a single PutObject carrying a CRC32C
// checksum; larger ones go through the multipart upload manager.
package s3
