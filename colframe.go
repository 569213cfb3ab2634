package colframe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/colframe/arraygroup"
	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/blockmanager"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/cache"
	"github.com/hupe1980/colframe/internal/resource"
	"github.com/hupe1980/colframe/optimizer"
	"github.com/hupe1980/colframe/plan"
	"github.com/hupe1980/colframe/table"
)

// Engine ties a blob store to a block manager, a decoded-block cache, a
// resource controller and a plan optimizer. It is safe for concurrent use.
type Engine struct {
	store     blobstore.BlobStore
	rc        *resource.Controller
	cache     cache.BlockCache
	diskCache *cache.DiskBlockCache
	mgr       *blockmanager.Manager
	opt       *optimizer.Optimizer
	logger    *Logger
	metrics   MetricsCollector
	closed    atomic.Bool
}

// Local returns a blob store over the local directory root. Segment files
// are memory mapped.
func Local(root string) blobstore.BlobStore {
	return blobstore.NewLocalStore(root, blobstore.WithMmap(true))
}

// Open creates an engine over store.
//
// Example:
//
//	eng, err := colframe.Open(colframe.Local("./data"), colframe.WithCacheBytes(256<<20))
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
func Open(store blobstore.BlobStore, optFns ...Option) (*Engine, error) {
	o := applyOptions(optFns)

	e := &Engine{
		store:   store,
		logger:  o.logger,
		metrics: o.metricsCollector,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			IOLimitBytesPerSec: o.ioLimit,
			MaxScanWorkers:     o.scanWorkers,
		}),
	}

	if o.diskCacheDir != "" {
		dc, err := cache.NewDiskBlockCache(cache.DiskCacheConfig{
			RootDir:      o.diskCacheDir,
			MaxSizeBytes: o.diskCacheBytes,
		})
		if err != nil {
			return nil, err
		}
		e.diskCache = dc
		e.store = blobstore.NewCachingStore(store, dc, DefaultDiskCacheChunk)
	}

	if o.cacheBytes > 0 {
		e.cache = cache.NewShardedLRUBlockCache(o.cacheBytes, e.rc)
	}

	e.mgr = blockmanager.New(e.store,
		blockmanager.WithMaxOpenHandles(o.maxOpenHandles),
		blockmanager.WithBlockCache(e.cache),
		blockmanager.WithResourceController(e.rc),
		blockmanager.WithValueCodec(o.valueCodec),
		blockmanager.WithLogger(o.logger.Logger),
		blockmanager.WithObserver(blockObserver{mc: o.metricsCollector}),
	)

	optOpts := append([]optimizer.Option{optimizer.WithLogger(o.logger.Logger)}, o.optimizerOptions...)
	e.opt = optimizer.New(optOpts...)

	return e, nil
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// Default returns the process-wide engine over the current working
// directory, creating it on first use. Prefer Open in libraries and tests.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = Open(Local("."))
	})
	return defaultEngine, defaultErr
}

// Store returns the blob store reads go through.
func (e *Engine) Store() blobstore.BlobStore { return e.store }

// BlockManager returns the engine's block manager.
func (e *Engine) BlockManager() *blockmanager.Manager { return e.mgr }

// Optimizer returns the engine's plan optimizer.
func (e *Engine) Optimizer() *optimizer.Optimizer { return e.opt }

// Stats returns a snapshot of the block manager's counters.
func (e *Engine) Stats() blockmanager.Stats { return e.mgr.Stats() }

// CreateArrayGroup starts writing a new array group named name.
func (e *Engine) CreateArrayGroup(ctx context.Context, name string, columns []arraygroup.ColumnDef, numSegments int, optFns ...arraygroup.WriterOption) (*arraygroup.Writer, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	opts := append([]arraygroup.WriterOption{
		arraygroup.WithResourceController(e.rc),
		arraygroup.WithLogger(e.logger.Logger),
	}, optFns...)
	w, err := arraygroup.NewWriter(ctx, e.store, name, columns, numSegments, opts...)
	return w, translateError(err)
}

// OpenTable opens the columns of the named array groups as one table. The
// caller must Close the table.
func (e *Engine) OpenTable(ctx context.Context, names ...string) (*table.Table, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	t, err := table.Open(ctx, e.mgr, e.store, names...)
	if err != nil {
		err = translateError(err)
		e.logger.LogOpenTable(ctx, names, 0, 0, err)
		return nil, err
	}
	e.logger.LogOpenTable(ctx, names, t.NumColumns(), t.NumRows(), nil)
	return t, nil
}

// Optimize rewrites the plan under root in place.
func (e *Engine) Optimize(ctx context.Context, g *plan.Graph, root plan.NodeID) optimizer.Result {
	start := time.Now()
	res := e.opt.Optimize(g, root)
	d := time.Since(start)

	e.metrics.RecordOptimize(res.Passes, res.Rewrites, res.Converged, d)
	e.logger.LogOptimize(ctx, res.Passes, res.Rewrites, res.Converged, d)
	return res
}

// Scan iterates the tables in lockstep over threads range partitions.
// threads <= 0 uses GOMAXPROCS; the engine's scan worker limit applies.
func (e *Engine) Scan(ctx context.Context, tables []*table.Table, threads int, fn table.RowFunc, optFns ...table.ScanOption) error {
	if e.closed.Load() {
		return ErrClosed
	}
	var rows atomic.Int64
	counted := func(thread int, row uint64, values [][]codec.Value) error {
		rows.Add(1)
		return fn(thread, row, values)
	}

	start := time.Now()
	opts := append([]table.ScanOption{table.WithResourceController(e.rc)}, optFns...)
	err := translateError(table.ScanParallel(ctx, tables, threads, nil, counted, opts...))

	e.metrics.RecordScan(rows.Load(), time.Since(start), err)
	e.logger.LogScan(ctx, len(tables), threads, rows.Load(), err)
	return err
}

// Close releases the block manager and caches. Tables opened from the
// engine must be closed first.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	errs := []error{e.mgr.Close()}
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	if e.diskCache != nil {
		errs = append(errs, e.diskCache.Close())
	}
	return errors.Join(errs...)
}
