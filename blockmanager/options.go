package blockmanager

import (
	"log/slog"
	"time"

	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/cache"
	"github.com/hupe1980/colframe/internal/pool"
	"github.com/hupe1980/colframe/internal/resource"
)

const (
	// DefaultMaxOpenHandles bounds the live file handles of a Manager.
	DefaultMaxOpenHandles = 128
	// DefaultCacheBytes is the capacity of the default decoded-block cache.
	DefaultCacheBytes = 64 << 20
)

// Observer receives block read events.
type Observer interface {
	// OnBlockRead is called after a block was fetched from storage.
	OnBlockRead(bytes int, d time.Duration, err error)
	// OnCacheLookup is called for every decoded-block cache lookup.
	OnCacheLookup(hit bool)
}

type noopObserver struct{}

func (noopObserver) OnBlockRead(int, time.Duration, error) {}
func (noopObserver) OnCacheLookup(bool)                    {}

type options struct {
	maxOpenHandles int
	cache          cache.BlockCache
	cacheSet       bool
	rc             *resource.Controller
	valueCodec     codec.ValueCodec
	logger         *slog.Logger
	buffers        *pool.BufferPool
	observer       Observer
}

// Option configures a Manager.
type Option func(*options)

// WithMaxOpenHandles bounds the number of live file handles. Default: 128.
func WithMaxOpenHandles(n int) Option {
	return func(o *options) {
		o.maxOpenHandles = n
	}
}

// WithBlockCache sets the decoded-block cache. Passing nil disables caching.
// Default: a 64 MiB sharded LRU.
func WithBlockCache(c cache.BlockCache) Option {
	return func(o *options) {
		o.cache = c
		o.cacheSet = true
	}
}

// WithResourceController limits IO throughput and cache memory.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithValueCodec sets the codec used by ReadTypedBlock. Default: codec.Binary.
func WithValueCodec(vc codec.ValueCodec) Option {
	return func(o *options) {
		o.valueCodec = vc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithBufferPool shares a buffer pool between managers.
func WithBufferPool(p *pool.BufferPool) Option {
	return func(o *options) {
		o.buffers = p
	}
}

// WithObserver sets the observer for block read events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}
