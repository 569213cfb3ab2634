package minio

import (
	"context"
	"os"
	"testing"

	"github.com/hupe1980/colframe/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Integration requires a running MinIO instance (MINIO_ENDPOINT).
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}
	const bucket = "colframe-test"

	store, err := Dial(endpoint, "minioadmin", "minioadmin", false, bucket, "it/")
	require.NoError(t, err)

	ctx := context.Background()
	if _, err := store.client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	exists, err := store.client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, store.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	require.NoError(t, store.Put(ctx, "tbl/index.json", []byte(`{"version":1}`)))

	w, err := store.Create(ctx, "tbl/part.0000")
	require.NoError(t, err)
	_, err = w.Write([]byte("segment bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, "tbl/part.0000")
	require.NoError(t, err)
	assert.Equal(t, int64(13), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 8)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(buf[:n]))
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "tbl/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tbl/index.json", "tbl/part.0000"}, names)

	require.NoError(t, store.Delete(ctx, "tbl/part.0000"))
	require.NoError(t, store.Delete(ctx, "tbl/index.json"))

	_, err = store.Open(ctx, "tbl/part.0000")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
