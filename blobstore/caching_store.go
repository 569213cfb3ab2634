package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/colframe/internal/cache"
	"golang.org/x/sync/errgroup"
)

const defaultChunkSize = 64 << 10

// CachingStore wraps a (typically remote) BlobStore with a chunk cache,
// usually a cache.DiskBlockCache. Reads are aligned to fixed-size chunks and
// contiguous missing chunks are fetched with one backend request each.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	chunkSize int64
}

// NewCachingStore creates a new CachingStore.
// chunkSize defaults to 64 KiB if <= 0.
func NewCachingStore(inner BlobStore, c cache.BlockCache, chunkSize int64) *CachingStore {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &CachingStore{inner: inner, cache: c, chunkSize: chunkSize}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingBlob{inner: b, cache: s.cache, name: name, chunkSize: s.chunkSize}, nil
}

// Create passes through; segments are write-once and cached on first read.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.cache.Invalidate(cache.ForPath(name))
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Invalidate(cache.ForPath(name))
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Invalidate(cache.ForPath(name))
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type cachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	chunkSize int64
}

func (b *cachingBlob) Close() error { return b.inner.Close() }
func (b *cachingBlob) Size() int64  { return b.inner.Size() }

func (b *cachingBlob) key(chunk int64) cache.CacheKey {
	return cache.CacheKey{Kind: cache.CacheKindBlob, Path: b.name, Offset: uint64(chunk)}
}

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}

	end := min(off+int64(len(p)), size)
	first := off / b.chunkSize
	last := (end - 1) / b.chunkSize

	chunks := make([][]byte, last-first+1)
	var missing []int64
	for c := first; c <= last; c++ {
		if data, ok := b.cache.Get(ctx, b.key(c)); ok {
			chunks[c-first] = data
		} else {
			missing = append(missing, c)
		}
	}

	if len(missing) > 0 {
		if err := b.fill(ctx, missing, first, chunks); err != nil {
			return 0, err
		}
	}

	n := 0
	for c := first; c <= last; c++ {
		chunkStart := c * b.chunkSize
		data := chunks[c-first]
		from := max(off, chunkStart) - chunkStart
		if from >= int64(len(data)) {
			break
		}
		n += copy(p[n:], data[from:])
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fill fetches contiguous runs of missing chunks concurrently.
func (b *cachingBlob) fill(ctx context.Context, missing []int64, first int64, chunks [][]byte) error {
	type run struct{ start, count int64 }

	var runs []run
	for _, c := range missing {
		if len(runs) > 0 {
			last := &runs[len(runs)-1]
			if last.start+last.count == c {
				last.count++
				continue
			}
		}
		runs = append(runs, run{start: c, count: 1})
	}

	size := b.Size()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	for _, r := range runs {
		g.Go(func() error {
			start := r.start * b.chunkSize
			length := min(r.count*b.chunkSize, size-start)

			buf := make([]byte, length)
			n, err := b.inner.ReadAt(gctx, buf, start)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]

			for i := range r.count {
				lo := i * b.chunkSize
				if lo >= int64(len(buf)) {
					break
				}
				hi := min(lo+b.chunkSize, int64(len(buf)))
				// Copy so a cached chunk does not pin the whole run buffer.
				chunk := make([]byte, hi-lo)
				copy(chunk, buf[lo:hi])

				chunks[r.start+i-first] = chunk
				b.cache.Set(gctx, b.key(r.start+i), chunk)
			}
			return nil
		})
	}
	return g.Wait()
}
