// Package minio stores segment files in MinIO or any S3-compatible service
// (Ceph, Garage, SeaweedFS) through the MinIO Go client.
//
//	store, err := minio.Dial("localhost:9000", "minioadmin", "minioadmin", false,
//	    "analytics", "tables/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng, err := colframe.Open(store)
//
// Blocks are read with ranged GETs; segment writes stream with an unknown
// content length.
package minio
