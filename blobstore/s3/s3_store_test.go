package s3

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/colframe/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("Skipping S3 integration test: S3_BUCKET not set")
	}

	ctx := context.Background()
	store, err := New(ctx, bucket, WithPrefix(fmt.Sprintf("colframe-test-%d/", time.Now().UnixNano())))
	require.NoError(t, err)

	data := make([]byte, 1<<20)
	_, _ = rand.Read(data)

	w, err := store.Create(ctx, "tbl/part.0000")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, store.Put(ctx, "tbl/index.json", []byte("{}")))

	names, err := store.List(ctx, "tbl/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tbl/index.json", "tbl/part.0000"}, names)

	got, err := blobstore.ReadAll(ctx, store, "tbl/part.0000")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, "tbl/part.0000"))
	require.NoError(t, store.Delete(ctx, "tbl/index.json"))

	_, err = store.Open(ctx, "tbl/part.0000")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
