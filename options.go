package colframe

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/optimizer"
)

const (
	// DefaultMaxOpenHandles is the default bound on open segment handles.
	DefaultMaxOpenHandles = 128
	// DefaultCacheBytes is the default decoded-block cache capacity.
	DefaultCacheBytes = 64 << 20
	// DefaultDiskCacheChunk is the chunk size of the disk cache tier.
	DefaultDiskCacheChunk = 1 << 20
)

type options struct {
	maxOpenHandles   int
	cacheBytes       int64
	memoryLimit      int64
	ioLimit          int64
	scanWorkers      int64
	diskCacheDir     string
	diskCacheBytes   int64
	valueCodec       codec.ValueCodec
	optimizerOptions []optimizer.Option
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Open.
type Option func(*options)

// WithMaxOpenHandles bounds the number of segment handles open at once.
func WithMaxOpenHandles(n int) Option {
	return func(o *options) {
		o.maxOpenHandles = n
	}
}

// WithCacheBytes sets the decoded-block cache capacity. 0 disables the cache.
func WithCacheBytes(n int64) Option {
	return func(o *options) {
		o.cacheBytes = n
	}
}

// WithMemoryLimit caps the memory held by decoded blocks in the cache.
// Blocks that do not fit are served without being cached.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles raw block reads to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithScanWorkers bounds the concurrent scan partitions across all scans.
// The default is GOMAXPROCS.
func WithScanWorkers(n int) Option {
	return func(o *options) {
		o.scanWorkers = int64(n)
	}
}

// WithDiskCache puts a local disk cache of at most maxBytes in front of the
// blob store. Useful for remote stores.
//
// Example:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("tables/"))
//	eng, _ := colframe.Open(store, colframe.WithDiskCache("/fast/nvme", 10<<30))
func WithDiskCache(dir string, maxBytes int64) Option {
	return func(o *options) {
		o.diskCacheDir = dir
		o.diskCacheBytes = maxBytes
	}
}

// WithValueCodec sets the codec typed blocks are decoded with.
// If nil is passed, codec.Binary is used.
func WithValueCodec(vc codec.ValueCodec) Option {
	return func(o *options) {
		o.valueCodec = vc
	}
}

// WithOptimizerOptions configures the plan optimizer.
func WithOptimizerOptions(opts ...optimizer.Option) Option {
	return func(o *options) {
		o.optimizerOptions = append(o.optimizerOptions, opts...)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &colframe.BasicMetricsCollector{}
//	eng, _ := colframe.Open(store, colframe.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Block reads: %d, cache hits: %d\n", stats.BlockReads, stats.CacheHits)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		maxOpenHandles:   DefaultMaxOpenHandles,
		cacheBytes:       DefaultCacheBytes,
		valueCodec:       codec.Binary{},
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.valueCodec == nil {
		o.valueCodec = codec.Binary{}
	}
	if o.scanWorkers <= 0 {
		o.scanWorkers = int64(runtime.GOMAXPROCS(0))
	}
	return o
}
