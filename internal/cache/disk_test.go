package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskBlockCache(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1024})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	key1 := CacheKey{Kind: CacheKindBlob, Path: "tbl/part.0000", Offset: 0}
	key2 := CacheKey{Kind: CacheKindBlob, Path: "tbl/part.0000", Offset: 400}
	key3 := CacheKey{Kind: CacheKindBlob, Path: "tbl/part.0000", Offset: 800}

	c.Set(ctx, key1, make([]byte, 400))
	c.Flush()

	path1 := filepath.Join(dir, c.relPathForKey(key1))
	assert.FileExists(t, path1)

	got, ok := c.Get(ctx, key1)
	require.True(t, ok)
	assert.Len(t, got, 400)

	c.Set(ctx, key2, make([]byte, 400))
	c.Flush()
	c.Set(ctx, key3, make([]byte, 400))
	c.Flush()

	// 1200 bytes exceed the limit; key1 was least recently used.
	_, ok = c.Get(ctx, key1)
	assert.False(t, ok)
	assert.NoFileExists(t, path1)

	_, ok = c.Get(ctx, key2)
	assert.True(t, ok)
	_, ok = c.Get(ctx, key3)
	assert.True(t, ok)
	assert.Equal(t, int64(800), c.Size())
}

func TestDiskBlockCache_Reload(t *testing.T) {
	dir := t.TempDir()
	key := CacheKey{Kind: CacheKindRawBlock, SegmentID: 7, Column: 2, Block: 5}

	c1, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1 << 20})
	require.NoError(t, err)
	c1.Set(context.Background(), key, []byte("persisted"))
	require.NoError(t, c1.Close())

	c2, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1 << 20})
	require.NoError(t, err)
	got, ok := c2.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, "persisted", string(got))
}

func TestDiskBlockCache_KeyPathRoundTrip(t *testing.T) {
	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: t.TempDir(), MaxSizeBytes: 1})
	require.NoError(t, err)

	for _, key := range []CacheKey{
		{Kind: CacheKindBlob, Path: "a/b/seg.0001", Offset: 4096},
		{Kind: CacheKindDecodedBlock, SegmentID: 3, Column: 1, Block: 9},
	} {
		abs := filepath.Join(c.rootDir, c.relPathForKey(key))
		got, ok := c.keyForPath(abs)
		require.True(t, ok)
		assert.Equal(t, key, got)
	}

	_, ok := c.keyForPath(filepath.Join(c.rootDir, "junk.txt"))
	assert.False(t, ok)
}

func TestDiskBlockCache_Invalidate(t *testing.T) {
	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: t.TempDir(), MaxSizeBytes: 1 << 20})
	require.NoError(t, err)
	ctx := context.Background()

	c.Set(ctx, CacheKey{Kind: CacheKindBlob, Path: "x", Offset: 0}, []byte("x"))
	c.Set(ctx, CacheKey{Kind: CacheKindBlob, Path: "y", Offset: 0}, []byte("y"))
	c.Flush()

	c.Invalidate(ForPath("x"))
	_, ok := c.Get(ctx, CacheKey{Kind: CacheKindBlob, Path: "x"})
	assert.False(t, ok)
	_, ok = c.Get(ctx, CacheKey{Kind: CacheKindBlob, Path: "y"})
	assert.True(t, ok)
}
