package blockmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/cache"
	"github.com/hupe1980/colframe/internal/compress"
	"github.com/hupe1980/colframe/internal/pool"
	"github.com/hupe1980/colframe/segment"
	"golang.org/x/sync/singleflight"
)

// segmentEntry is the shared state of one resolved segment path.
type segmentEntry struct {
	id   SegmentID
	path string

	refs int // guarded by Manager.mu

	loadMu  sync.Mutex
	loaded  bool
	loadErr error
	index   atomic.Pointer[segment.Index]

	handles []handleRef // guarded by handlePool.mu
	purged  bool        // guarded by handlePool.mu
}

func (s *segmentEntry) blockIndex() segment.Index {
	if p := s.index.Load(); p != nil {
		return *p
	}
	return nil
}

// Manager serves block reads for any number of segments.
// All methods are safe for concurrent use.
type Manager struct {
	store blobstore.BlobStore
	opts  options

	mu       sync.RWMutex
	byPath   map[string]*segmentEntry
	byID     map[SegmentID]*segmentEntry
	nextID   SegmentID
	handles  *handlePool
	inflight singleflight.Group
	closed   atomic.Bool
	ownCache bool

	blockReads     atomic.Int64
	bytesRead      atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	decodeFailures atomic.Int64
}

// New creates a Manager reading segments from store.
func New(store blobstore.BlobStore, optFns ...Option) *Manager {
	opts := options{
		maxOpenHandles: DefaultMaxOpenHandles,
		valueCodec:     codec.Binary{},
		observer:       noopObserver{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	ownCache := !opts.cacheSet
	if ownCache {
		opts.cache = cache.NewShardedLRUBlockCache(DefaultCacheBytes, opts.rc)
	}
	if opts.buffers == nil {
		opts.buffers = pool.NewBufferPool()
	}
	if opts.valueCodec == nil {
		opts.valueCodec = codec.Binary{}
	}
	if opts.observer == nil {
		opts.observer = noopObserver{}
	}

	m := &Manager{
		store:    store,
		opts:     opts,
		byPath:   make(map[string]*segmentEntry),
		byID:     make(map[SegmentID]*segmentEntry),
		nextID:   1,
		ownCache: ownCache,
	}
	m.handles = newHandlePool(opts.maxOpenHandles, m.openBlob, opts.logger)
	return m
}

func (m *Manager) openBlob(seg *segmentEntry) (blobstore.Blob, error) {
	b, err := m.store.Open(context.Background(), seg.path)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, seg.path)
		}
		return nil, err
	}
	return b, nil
}

// OpenColumn resolves a "path[:col]" spec and references its segment.
// Opening the same resolved path again yields the same SegmentID while the
// segment has not been purged.
func (m *Manager) OpenColumn(spec string) (ColumnAddress, error) {
	name, col, err := segment.ParseColumnSpec(spec)
	if err != nil {
		return ColumnAddress{}, err
	}
	name = path.Clean(name)

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return ColumnAddress{}, ErrClosed
	}
	seg, ok := m.byPath[name]
	if !ok {
		seg = &segmentEntry{id: m.nextID, path: name}
		m.nextID++
		m.byPath[name] = seg
		m.byID[seg.id] = seg
	}
	seg.refs++
	m.mu.Unlock()

	if !ok && m.opts.logger != nil {
		m.opts.logger.Debug("segment registered", "path", name, "segment", seg.id)
	}

	if err := m.loadIndex(seg); err != nil {
		m.unref(seg)
		return ColumnAddress{}, err
	}

	if n := seg.blockIndex().NumColumns(); col < 0 || col >= n {
		m.unref(seg)
		return ColumnAddress{}, fmt.Errorf("%w: column %d of %d in %s", ErrOutOfRange, col, n, name)
	}
	return ColumnAddress{Segment: seg.id, Column: col}, nil
}

// loadIndex loads the block index of seg exactly once. Failing to open the
// file is retried on the next open; a corrupt footer or index is sticky.
func (m *Manager) loadIndex(seg *segmentEntry) error {
	seg.loadMu.Lock()
	defer seg.loadMu.Unlock()

	if seg.loaded {
		return seg.loadErr
	}

	ref, b, err := m.handles.acquire(seg)
	if err != nil {
		return err
	}
	idx, err := segment.ReadIndex(blobstore.ReaderAt(context.Background(), b), b.Size())
	m.handles.release(seg, ref, err == nil)

	seg.loaded = true
	if err != nil {
		seg.loadErr = fmt.Errorf("%w: %s: %w", ErrIndexLoad, seg.path, err)
		if m.opts.logger != nil {
			m.opts.logger.Warn("segment index load failed", "path", seg.path, "error", err)
		}
		return seg.loadErr
	}

	seg.index.Store(&idx)
	if m.opts.logger != nil {
		m.opts.logger.Debug("segment index loaded", "path", seg.path, "segment", seg.id, "columns", idx.NumColumns())
	}
	return nil
}

// CloseColumn drops one reference taken by OpenColumn. A segment without
// references keeps its identity until Purge but its pooled handles become
// the first eviction candidates.
func (m *Manager) CloseColumn(addr ColumnAddress) error {
	m.mu.Lock()
	seg, ok := m.byID[addr.Segment]
	if !ok || seg.refs == 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: column %s is not open", ErrOutOfRange, addr)
	}
	m.mu.Unlock()
	m.unref(seg)
	return nil
}

func (m *Manager) unref(seg *segmentEntry) {
	m.mu.Lock()
	seg.refs--
	idle := seg.refs == 0
	m.mu.Unlock()

	if idle {
		m.handles.demote(seg)
	}
}

// RefCount returns the number of open columns referencing a segment.
func (m *Manager) RefCount(id SegmentID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if seg, ok := m.byID[id]; ok {
		return seg.refs
	}
	return 0
}

// Path returns the resolved path of a segment.
func (m *Manager) Path(id SegmentID) (string, bool) {
	seg := m.segment(id)
	if seg == nil {
		return "", false
	}
	return seg.path, true
}

// Purge forgets every segment without references, closing its pooled
// handles and dropping its cached blocks. It returns the number of purged
// segments.
func (m *Manager) Purge() (int, error) {
	m.mu.Lock()
	var purged []*segmentEntry
	for path, seg := range m.byPath {
		if seg.refs == 0 {
			delete(m.byPath, path)
			delete(m.byID, seg.id)
			purged = append(purged, seg)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, seg := range purged {
		errs = append(errs, m.handles.drop(seg))
		if m.opts.cache != nil {
			m.opts.cache.Invalidate(cache.ForSegment(uint64(seg.id)))
		}
	}
	return len(purged), errors.Join(errs...)
}

func (m *Manager) segment(id SegmentID) *segmentEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

func (m *Manager) columnIndex(addr ColumnAddress) ([]segment.BlockInfo, bool) {
	seg := m.segment(addr.Segment)
	if seg == nil {
		return nil, false
	}
	idx := seg.blockIndex()
	if addr.Column < 0 || addr.Column >= idx.NumColumns() {
		return nil, false
	}
	return idx[addr.Column], true
}

// NumColumns returns the column count of a segment.
func (m *Manager) NumColumns(id SegmentID) (int, bool) {
	seg := m.segment(id)
	if seg == nil || seg.index.Load() == nil {
		return 0, false
	}
	return seg.blockIndex().NumColumns(), true
}

// NumBlocksInColumn returns the number of blocks of a column.
func (m *Manager) NumBlocksInColumn(addr ColumnAddress) (int, bool) {
	blocks, ok := m.columnIndex(addr)
	return len(blocks), ok
}

// BlockInfo returns the metadata of one block.
func (m *Manager) BlockInfo(addr BlockAddress) (segment.BlockInfo, bool) {
	blocks, ok := m.columnIndex(addr.ColumnAddress())
	if !ok || addr.Block < 0 || addr.Block >= len(blocks) {
		return segment.BlockInfo{}, false
	}
	return blocks[addr.Block], true
}

// AllBlockInfo returns the metadata of every block of a column. The slice is
// shared and must not be modified.
func (m *Manager) AllBlockInfo(addr ColumnAddress) ([]segment.BlockInfo, bool) {
	return m.columnIndex(addr)
}

// ColumnRowCount returns the total rows of a column.
func (m *Manager) ColumnRowCount(addr ColumnAddress) (uint64, bool) {
	blocks, ok := m.columnIndex(addr)
	if !ok {
		return 0, false
	}
	var n uint64
	for _, b := range blocks {
		n += uint64(b.RowCount)
	}
	return n, true
}

// ReadBlock returns the decoded bytes of a block in a pooled buffer, which the
// caller must Release.
func (m *Manager) ReadBlock(addr BlockAddress) (*pool.Buffer, segment.BlockInfo, error) {
	decoded, info, err := m.decodedBlock(addr)
	if err != nil {
		return nil, info, err
	}
	buf := m.opts.buffers.Get(len(decoded))
	copy(buf.B, decoded)
	return buf, info, nil
}

// ReadTypedBlock returns the values of a block.
func (m *Manager) ReadTypedBlock(addr BlockAddress) ([]codec.Value, error) {
	decoded, info, err := m.decodedBlock(addr)
	if err != nil {
		return nil, err
	}

	// RowCount is untrusted; an encoded value is never shorter than a byte.
	vals, err := m.opts.valueCodec.DecodeValues(decoded, make([]codec.Value, 0, min(int(info.RowCount), len(decoded))))
	if err != nil {
		m.decodeFailures.Add(1)
		return nil, blockError(addr, "decode values", fmt.Errorf("%w: %w", ErrDecode, err))
	}
	if len(vals) != int(info.RowCount) {
		m.decodeFailures.Add(1)
		return nil, blockError(addr, "decode values",
			fmt.Errorf("%w: %d values, index says %d rows", ErrDecode, len(vals), info.RowCount))
	}
	return vals, nil
}

// ReadTypedBlocks reads up to n consecutive blocks starting at addr. Fewer
// than n are returned when the column ends first.
func (m *Manager) ReadTypedBlocks(addr BlockAddress, n int) ([][]codec.Value, error) {
	total, ok := m.NumBlocksInColumn(addr.ColumnAddress())
	if !ok || addr.Block < 0 || addr.Block >= total {
		return nil, blockError(addr, "read", ErrOutOfRange)
	}

	n = min(n, total-addr.Block)
	out := make([][]codec.Value, 0, max(n, 0))
	for i := 0; i < n; i++ {
		vals, err := m.ReadTypedBlock(BlockAddress{Segment: addr.Segment, Column: addr.Column, Block: addr.Block + i})
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, nil
}

// decodedBlock returns the shared decoded bytes of a block. The result is
// read-only.
func (m *Manager) decodedBlock(addr BlockAddress) ([]byte, segment.BlockInfo, error) {
	if m.closed.Load() {
		return nil, segment.BlockInfo{}, ErrClosed
	}
	seg := m.segment(addr.Segment)
	if seg == nil {
		return nil, segment.BlockInfo{}, blockError(addr, "read", ErrOutOfRange)
	}
	if seg.index.Load() == nil {
		seg.loadMu.Lock()
		err := seg.loadErr
		seg.loadMu.Unlock()
		if err == nil {
			err = ErrIndexLoad
		}
		return nil, segment.BlockInfo{}, blockError(addr, "read", err)
	}
	info, ok := seg.blockIndex().Block(addr.Column, addr.Block)
	if !ok {
		return nil, info, blockError(addr, "read", ErrOutOfRange)
	}

	key := cache.CacheKey{
		Kind:      cache.CacheKindDecodedBlock,
		SegmentID: uint64(addr.Segment),
		Column:    uint32(addr.Column),
		Block:     uint32(addr.Block),
	}
	if c := m.opts.cache; c != nil {
		b, hit := c.Get(context.Background(), key)
		m.opts.observer.OnCacheLookup(hit)
		if hit {
			m.cacheHits.Add(1)
			return b, info, nil
		}
		m.cacheMisses.Add(1)
	}

	v, err, _ := m.inflight.Do(addr.String(), func() (any, error) {
		start := time.Now()
		b, err := m.fetch(seg, info)
		m.opts.observer.OnBlockRead(int(info.OnDiskSize), time.Since(start), err)
		if err != nil {
			return nil, err
		}
		if c := m.opts.cache; c != nil {
			c.Set(context.Background(), key, b)
		}
		return b, nil
	})
	if err != nil {
		if errors.Is(err, ErrDecode) || errors.Is(err, segment.ErrChecksumMismatch) {
			if m.opts.logger != nil {
				m.opts.logger.Warn("block decode failed", "path", seg.path, "block", addr.String(), "error", err)
			}
		}
		return nil, info, blockError(addr, "read", err)
	}
	return v.([]byte), info, nil
}

// fetch reads, verifies and decompresses one block.
func (m *Manager) fetch(seg *segmentEntry, info segment.BlockInfo) ([]byte, error) {
	ctx := context.Background()
	size := int(info.OnDiskSize)
	if err := m.opts.rc.AcquireIO(ctx, size); err != nil {
		return nil, err
	}

	ref, blob, err := m.handles.acquire(seg)
	if err != nil {
		return nil, err
	}
	healthy := true
	defer func() { m.handles.release(seg, ref, healthy) }()

	var raw []byte
	if mb, ok := blob.(blobstore.Mappable); ok {
		raw, err = mb.Slice(int64(info.Offset), size)
		if err != nil {
			healthy = false
			return nil, fmt.Errorf("%w: %w", ErrShortRead, err)
		}
	} else {
		scratch := m.opts.buffers.Get(size)
		defer scratch.Release()
		n, err := blob.ReadAt(ctx, scratch.B, int64(info.Offset))
		if n < size {
			healthy = false
			if err == nil || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %d of %d bytes", ErrShortRead, n, size)
			}
			return nil, err
		}
		raw = scratch.B
	}
	m.blockReads.Add(1)
	m.bytesRead.Add(int64(size))

	if err := info.Verify(raw); err != nil {
		m.decodeFailures.Add(1)
		return nil, err
	}
	decoded, err := compress.Decode(info.Codec, nil, raw, int(info.DecodedSize))
	if err != nil {
		m.decodeFailures.Add(1)
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return decoded, nil
}

// Stats is a snapshot of Manager counters.
type Stats struct {
	OpenSegments     int
	ReferencedSegs   int
	LiveHandles      int
	MaxLiveHandles   int
	HandleOpens      int64
	HandleEvictions  int64
	StaleHandleReuse int64
	BlockReads       int64
	BytesRead        int64
	CacheHits        int64
	CacheMisses      int64
	DecodeFailures   int64
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	open, referenced := len(m.byID), 0
	for _, seg := range m.byID {
		if seg.refs > 0 {
			referenced++
		}
	}
	m.mu.RUnlock()

	hs := m.handles.stats()
	return Stats{
		OpenSegments:     open,
		ReferencedSegs:   referenced,
		LiveHandles:      hs.live,
		MaxLiveHandles:   hs.maxLive,
		HandleOpens:      hs.opens,
		HandleEvictions:  hs.evictions,
		StaleHandleReuse: hs.stale,
		BlockReads:       m.blockReads.Load(),
		BytesRead:        m.bytesRead.Load(),
		CacheHits:        m.cacheHits.Load(),
		CacheMisses:      m.cacheMisses.Load(),
		DecodeFailures:   m.decodeFailures.Load(),
	}
}

// MaxOpenHandles returns the handle bound.
func (m *Manager) MaxOpenHandles() int {
	return m.handles.limit
}

// ValueCodec returns the codec used for typed reads.
func (m *Manager) ValueCodec() codec.ValueCodec {
	return m.opts.valueCodec
}

// Logger returns the configured logger, or nil.
func (m *Manager) Logger() *slog.Logger {
	return m.opts.logger
}

// Close closes every pooled handle. Handles checked out by in-flight reads are
// closed when returned. A block cache passed with WithBlockCache stays open.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := m.handles.close()
	if m.ownCache && m.opts.cache != nil {
		err = errors.Join(err, m.opts.cache.Close())
	}
	return err
}
