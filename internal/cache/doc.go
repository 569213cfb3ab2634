// Package cache provides the block caches that sit in front of segment reads.
//
// # Decoded block cache (RAM)
//
// ShardedLRUBlockCache holds recently decoded blocks keyed by
// (segment, column, block). Capacity is in bytes and optionally charged to a
// resource.Controller; when the controller refuses memory the block is served
// without being cached.
//
// # Disk cache (L2)
//
// DiskBlockCache keeps byte ranges of remote blobs on local disk:
//   - writes happen in the background, bounded by a semaphore
//   - LRU eviction by total size
//   - the index is rebuilt from the directory on startup
package cache
