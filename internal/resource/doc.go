// Package resource bounds the shared resources of the read path.
//
// A Controller manages three limits:
//
//   - Memory: decoded block bytes held by caches (non-blocking, fail-fast)
//   - Scan workers: partitions running concurrently across parallel scans
//   - IO: raw block read throughput (token bucket)
//
// Memory:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20})
//	if err := rc.AcquireMemory(n); err != nil {
//	    // ErrMemoryLimitExceeded: serve the block without caching it
//	}
//	defer rc.ReleaseMemory(n)
//
// Scan workers:
//
//	if err := rc.AcquireScan(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseScan()
//
// All methods are safe for concurrent use and treat a nil Controller as
// unlimited.
package resource
