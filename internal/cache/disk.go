package cache

import (
	"container/list"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const (
	diskEntryExt  = ".blk"
	diskMiscDir   = "_misc"
	diskKeyFormat = "%d-%d-%d-%d-%d" + diskEntryExt
)

// DiskCacheConfig holds configuration for the disk cache.
type DiskCacheConfig struct {
	// RootDir is the directory where cache files are stored.
	RootDir string
	// MaxSizeBytes is the maximum size of the cache in bytes.
	MaxSizeBytes int64
	// MaxConcurrentWrites limits background disk writes.
	// Defaults to 16 if <= 0.
	MaxConcurrentWrites int64
}

// DiskBlockCache implements BlockCache on the local filesystem. An in-memory
// LRU index tracks which entries are present on disk.
type DiskBlockCache struct {
	mu      sync.Mutex
	rootDir string
	maxSize int64
	size    int64
	items   map[CacheKey]*list.Element
	order   *list.List // of *diskEntry, front = most recently used

	writeSem *semaphore.Weighted
	wg       sync.WaitGroup

	hits   atomic.Int64
	misses atomic.Int64
}

type diskEntry struct {
	key  CacheKey
	size int64
	path string
}

// NewDiskBlockCache creates a disk-backed block cache, indexing any entries
// already present under RootDir.
func NewDiskBlockCache(cfg DiskCacheConfig) (*DiskBlockCache, error) {
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, err
	}

	maxWrites := cfg.MaxConcurrentWrites
	if maxWrites <= 0 {
		maxWrites = 16
	}

	c := &DiskBlockCache{
		rootDir:  cfg.RootDir,
		maxSize:  cfg.MaxSizeBytes,
		items:    make(map[CacheKey]*list.Element),
		order:    list.New(),
		writeSem: semaphore.NewWeighted(maxWrites),
	}
	c.loadExisting()

	return c, nil
}

func (c *DiskBlockCache) loadExisting() {
	_ = filepath.WalkDir(c.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		key, ok := c.keyForPath(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr
		}
		c.insert(key, path, info.Size())
		return nil
	})
}

// relPathForKey returns <Path>/<kind>-<seg>-<col>-<block>-<offset>.blk.
func (c *DiskBlockCache) relPathForKey(key CacheKey) string {
	name := fmt.Sprintf(diskKeyFormat, key.Kind, key.SegmentID, key.Column, key.Block, key.Offset)
	if key.Path != "" {
		return filepath.Join(key.Path, name)
	}
	return filepath.Join(diskMiscDir, name)
}

func (c *DiskBlockCache) keyForPath(absPath string) (CacheKey, bool) {
	rel, err := filepath.Rel(c.rootDir, absPath)
	if err != nil {
		return CacheKey{}, false
	}
	dir, file := filepath.Split(rel)

	var (
		k    CacheKey
		kind uint8
	)
	n, err := fmt.Sscanf(file, diskKeyFormat, &kind, &k.SegmentID, &k.Column, &k.Block, &k.Offset)
	if err != nil || n != 5 {
		return CacheKey{}, false
	}
	k.Kind = CacheKind(kind)

	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	if dir != diskMiscDir {
		k.Path = filepath.ToSlash(dir)
	}
	return k, true
}

// Get reads a cached entry from disk.
func (c *DiskBlockCache) Get(_ context.Context, key CacheKey) ([]byte, bool) {
	c.mu.Lock()
	el, ok := c.items[key]
	var path string
	if ok {
		c.order.MoveToFront(el)
		path = el.Value.(*diskEntry).path
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.mu.Lock()
		if el, ok := c.items[key]; ok {
			c.remove(el)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set writes b to disk in the background. When all write slots are busy the
// entry is dropped.
func (c *DiskBlockCache) Set(_ context.Context, key CacheKey, b []byte) {
	size := int64(len(b))
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if !c.writeSem.TryAcquire(1) {
		return
	}

	absPath := filepath.Join(c.rootDir, c.relPathForKey(key))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.writeSem.Release(1)

		if err := writeFileAtomic(absPath, b); err != nil {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.items[key]; ok {
			return
		}
		for c.size+size > c.maxSize && c.order.Len() > 0 {
			c.evictOldest()
		}
		c.insert(key, absPath, size)
	}()
}

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "tmp-blk-*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

// Invalidate removes matching entries and their files.
func (c *DiskBlockCache) Invalidate(predicate func(key CacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; {
		next := el.Next()
		ent := el.Value.(*diskEntry)
		if predicate(ent.key) {
			_ = os.Remove(ent.path)
			c.remove(el)
		}
		el = next
	}
}

// Flush waits for pending background writes.
func (c *DiskBlockCache) Flush() {
	c.wg.Wait()
}

// Close waits for all background writes to complete.
func (c *DiskBlockCache) Close() error {
	c.wg.Wait()
	return nil
}

// Stats returns hit and miss counters.
func (c *DiskBlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the bytes currently indexed.
func (c *DiskBlockCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// must hold c.mu
func (c *DiskBlockCache) insert(key CacheKey, path string, size int64) {
	c.items[key] = c.order.PushFront(&diskEntry{key: key, size: size, path: path})
	c.size += size
}

// must hold c.mu
func (c *DiskBlockCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	_ = os.Remove(el.Value.(*diskEntry).path)
	c.remove(el)
}

// must hold c.mu
func (c *DiskBlockCache) remove(el *list.Element) {
	ent := c.order.Remove(el).(*diskEntry)
	delete(c.items, ent.key)
	c.size -= ent.size
}
