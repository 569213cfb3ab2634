// Package s3 stores segment files in Amazon S3.
//
//	store, err := s3.New(ctx, "analytics",
//	    s3.WithPrefix("tables/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	eng, err := colframe.Open(blobstore.NewCachingStore(store, diskCache, 0))
//
// Blocks are fetched with ranged GetObject requests, so only the footer,
// the block index and the requested blocks are transferred. Segment writes
// stream through a multipart uploader.
package s3
