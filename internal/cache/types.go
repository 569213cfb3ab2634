package cache

import (
	"context"
	"encoding/binary"
	"hash/maphash"
)

// CacheKind separates key spaces sharing one cache.
type CacheKind uint8

const (
	CacheKindUnknown      CacheKind = iota
	CacheKindDecodedBlock           // decompressed block payloads
	CacheKindRawBlock               // on-disk (compressed) block bytes
	CacheKindBlob                   // byte ranges of remote blobs
)

// CacheKey identifies an immutable cached byte range. Segment files are
// write-once, so a key never needs a version component.
type CacheKey struct {
	Kind      CacheKind
	SegmentID uint64
	Column    uint32
	Block     uint32
	// Offset is the byte offset for blob range entries.
	Offset uint64
	// Path identifies the source file when SegmentID is not assigned
	// (blob-level caching below the block manager).
	Path string
}

// hash returns a seeded hash of every key field.
func (k CacheKey) hash(seed maphash.Seed) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)

	var buf [25]byte
	buf[0] = byte(k.Kind)
	binary.LittleEndian.PutUint64(buf[1:], k.SegmentID)
	binary.LittleEndian.PutUint32(buf[9:], k.Column)
	binary.LittleEndian.PutUint32(buf[13:], k.Block)
	binary.LittleEndian.PutUint64(buf[17:], k.Offset)
	_, _ = h.Write(buf[:])
	_, _ = h.WriteString(k.Path)

	return h.Sum64()
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key CacheKey) (b []byte, ok bool)
	// Set caches a block. Implementations retain b; the caller must not modify it afterwards.
	Set(ctx context.Context, key CacheKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	// Close releases any resources (e.g. background writers).
	Close() error
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}

// ForSegment returns an Invalidate predicate matching every entry of one segment.
func ForSegment(id uint64) func(CacheKey) bool {
	return func(k CacheKey) bool {
		return k.SegmentID == id && k.Path == ""
	}
}

// ForPath returns an Invalidate predicate matching every entry of one blob path.
func ForPath(path string) func(CacheKey) bool {
	return func(k CacheKey) bool {
		return k.Path == path
	}
}
