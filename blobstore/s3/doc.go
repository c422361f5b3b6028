// Package s3 stores blobs in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("exports/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	exp := export.New(store)
//
// Streaming writes use multipart uploads; reads use ranged GETs. Put sends a
// CRC32C checksum that S3 verifies on receipt.
package s3
