package arraygroup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/resource"
	"github.com/hupe1980/colframe/segment"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockRows is the default number of rows per block.
const DefaultBlockRows = 4096

var (
	// ErrWriterClosed is returned by appends after Close.
	ErrWriterClosed = errors.New("arraygroup: writer closed")
	// ErrKindMismatch is returned when a value does not match its column kind.
	ErrKindMismatch = errors.New("arraygroup: value kind mismatch")
)

// ColumnDef declares a column of a new array group.
type ColumnDef struct {
	Name     string
	Kind     codec.Kind
	Metadata map[string]string
}

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	blockRows   int
	segmentOpts []segment.WriterOption
	rc          *resource.Controller
	logger      *slog.Logger
}

// WithBlockRows sets the rows per block. Default: 4096.
func WithBlockRows(n int) WriterOption {
	return func(o *writerOptions) { o.blockRows = n }
}

// WithSegmentOptions passes options to every segment writer.
func WithSegmentOptions(opts ...segment.WriterOption) WriterOption {
	return func(o *writerOptions) { o.segmentOpts = append(o.segmentOpts, opts...) }
}

// WithResourceController throttles segment writes to the controller's IO rate.
func WithResourceController(rc *resource.Controller) WriterOption {
	return func(o *writerOptions) { o.rc = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WriterOption {
	return func(o *writerOptions) { o.logger = l }
}

type segmentState struct {
	mu      sync.Mutex
	blob    blobstore.WritableBlob
	w       *segment.Writer
	pending [][]codec.Value // per column, rows not yet written
	rows    []uint64        // per column, rows appended
}

// Writer writes a new array group. Appends to different segments may run
// concurrently.
type Writer struct {
	ctx     context.Context
	store   blobstore.BlobStore
	name    string
	columns []ColumnDef
	opts    writerOptions
	files   []string
	segs    []*segmentState

	mu     sync.Mutex
	closed bool
}

// NewWriter creates the segment files of an array group whose index will be
// stored at name.
func NewWriter(ctx context.Context, store blobstore.BlobStore, name string, columns []ColumnDef, numSegments int, optFns ...WriterOption) (*Writer, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidIndex)
	}
	if numSegments <= 0 {
		return nil, fmt.Errorf("%w: %d segments", ErrInvalidIndex, numSegments)
	}

	opts := writerOptions{blockRows: DefaultBlockRows}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.blockRows <= 0 {
		opts.blockRows = DefaultBlockRows
	}

	w := &Writer{
		ctx:     ctx,
		store:   store,
		name:    name,
		columns: columns,
		opts:    opts,
		files:   make([]string, numSegments),
		segs:    make([]*segmentState, numSegments),
	}

	base := path.Base(name)
	for i := range w.segs {
		w.files[i] = segment.FileName(base, i)
		blob, err := store.Create(ctx, path.Join(path.Dir(name), w.files[i]))
		if err != nil {
			w.abort()
			return nil, err
		}
		w.segs[i] = &segmentState{
			blob:    blob,
			w:       segment.NewWriter(resource.NewRateLimitedWriter(ctx, blob, opts.rc), len(columns), opts.segmentOpts...),
			pending: make([][]codec.Value, len(columns)),
			rows:    make([]uint64, len(columns)),
		}
	}
	return w, nil
}

// NumSegments returns the number of segments being written.
func (w *Writer) NumSegments() int { return len(w.segs) }

// Append adds values to column col of segment seg. Full blocks are written
// as soon as they are complete.
func (w *Writer) Append(seg, col int, values []codec.Value) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWriterClosed
	}
	if seg < 0 || seg >= len(w.segs) {
		return fmt.Errorf("%w: segment %d of %d", segment.ErrColumnRange, seg, len(w.segs))
	}
	if col < 0 || col >= len(w.columns) {
		return fmt.Errorf("%w: column %d of %d", segment.ErrColumnRange, col, len(w.columns))
	}
	kind := w.columns[col].Kind
	for i, v := range values {
		if !v.IsNull() && v.Kind() != kind {
			return fmt.Errorf("%w: column %s wants %s, value %d is %s", ErrKindMismatch, w.columns[col].Name, kind, i, v.Kind())
		}
	}

	s := w.segs[seg]
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[col] = append(s.pending[col], values...)
	s.rows[col] += uint64(len(values))
	return w.flushFull(s, col)
}

func (w *Writer) flushFull(s *segmentState, col int) error {
	n := w.opts.blockRows
	pending := s.pending[col]
	for len(pending) >= n {
		if _, err := s.w.WriteValues(col, pending[:n]); err != nil {
			return err
		}
		pending = pending[n:]
	}
	s.pending[col] = append(s.pending[col][:0], pending...)
	return nil
}

// Close flushes every segment concurrently and saves the index. It fails
// with ErrRowCountMismatch when the columns of a segment differ in length.
func (w *Writer) Close() (*Index, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrWriterClosed
	}
	w.closed = true
	w.mu.Unlock()

	g, _ := errgroup.WithContext(w.ctx)
	for i, s := range w.segs {
		g.Go(func() error {
			if err := w.finishSegment(i, s); err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.abort()
		return nil, err
	}

	cols := make([]ColumnMeta, len(w.columns))
	for c, def := range w.columns {
		rows := make([]uint64, len(w.segs))
		for i, s := range w.segs {
			rows[i] = s.rows[c]
		}
		cols[c] = ColumnMeta{Name: def.Name, Kind: def.Kind, Metadata: def.Metadata, SegmentRows: rows}
	}

	idx := NewIndex(w.name, w.files, cols)
	if err := Save(w.ctx, w.store, w.name, idx); err != nil {
		w.abort()
		return nil, err
	}
	if w.opts.logger != nil {
		w.opts.logger.Debug("array group written", "name", w.name, "segments", len(w.segs), "rows", idx.NumRows())
	}
	return idx, nil
}

func (w *Writer) finishSegment(i int, s *segmentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.rows {
		if s.rows[c] != s.rows[0] {
			return fmt.Errorf("%w: column %s has %d rows, column %s has %d",
				ErrRowCountMismatch, w.columns[c].Name, s.rows[c], w.columns[0].Name, s.rows[0])
		}
	}
	for c, pending := range s.pending {
		if len(pending) == 0 {
			continue
		}
		if _, err := s.w.WriteValues(c, pending); err != nil {
			return err
		}
		s.pending[c] = nil
	}
	if _, err := s.w.Close(); err != nil {
		return err
	}
	if err := s.blob.Sync(); err != nil {
		return err
	}
	err := s.blob.Close()
	s.blob = nil
	return err
}

// abort closes and deletes whatever segment files were created.
func (w *Writer) abort() {
	for i, s := range w.segs {
		if s == nil {
			continue
		}
		if s.blob != nil {
			_ = s.blob.Close()
			s.blob = nil
		}
		_ = w.store.Delete(context.WithoutCancel(w.ctx), path.Join(path.Dir(w.name), w.files[i]))
	}
}
