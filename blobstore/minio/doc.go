// Package minio stores blobs in MinIO or any other S3-compatible service
// reachable through minio-go.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(key, secret, ""),
//	})
//	store := blobminio.NewStore(client, "exports", "rtseg/")
package minio
