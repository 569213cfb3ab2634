package segment

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/compress"
	"github.com/hupe1980/colframe/internal/conv"
)

var (
	// ErrWriterClosed is returned by writes after Close.
	ErrWriterClosed = errors.New("segment: writer closed")
	// ErrColumnRange is returned for a column outside the writer's column count.
	ErrColumnRange = errors.New("segment: column out of range")
	// ErrBlockTooLarge is returned for blocks whose sizes do not fit the index.
	ErrBlockTooLarge = errors.New("segment: block too large")
)

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	codec      Codec
	valueCodec codec.ValueCodec
	checksums  bool
}

// WithCodec sets the block compression codec. Default: LZ4.
func WithCodec(c Codec) WriterOption {
	return func(o *writerOptions) { o.codec = c }
}

// WithValueCodec sets the typed value codec used by WriteValues. Default: codec.Binary.
func WithValueCodec(vc codec.ValueCodec) WriterOption {
	return func(o *writerOptions) { o.valueCodec = vc }
}

// WithChecksums controls whether CRC32C checksums are recorded. Default: true.
func WithChecksums(enabled bool) WriterOption {
	return func(o *writerOptions) { o.checksums = enabled }
}

// Writer writes one segment sequentially. Blocks of different columns may
// be interleaved in any order; Close appends the index and footer.
// A Writer is not safe for concurrent use.
type Writer struct {
	w      io.Writer
	opts   writerOptions
	off    uint64
	index  Index
	closed bool

	encoded []byte
	packed  []byte
}

// NewWriter creates a Writer for numColumns columns.
func NewWriter(w io.Writer, numColumns int, optFns ...WriterOption) *Writer {
	opts := writerOptions{
		codec:      CodecLZ4,
		valueCodec: codec.Binary{},
		checksums:  true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Writer{
		w:     w,
		opts:  opts,
		index: make(Index, numColumns),
	}
}

// WriteBlock compresses raw and appends it as the next block of col.
func (w *Writer) WriteBlock(col int, raw []byte, rows int) (BlockInfo, error) {
	if w.closed {
		return BlockInfo{}, ErrWriterClosed
	}
	if col < 0 || col >= len(w.index) {
		return BlockInfo{}, fmt.Errorf("%w: %d of %d", ErrColumnRange, col, len(w.index))
	}
	if len(raw) > compress.MaxDecodedSize {
		return BlockInfo{}, fmt.Errorf("%w: %d bytes", ErrBlockTooLarge, len(raw))
	}
	decoded, err := conv.IntToUint32(len(raw))
	if err != nil {
		return BlockInfo{}, fmt.Errorf("%w: %w", ErrBlockTooLarge, err)
	}
	rowCount, err := conv.IntToUint32(rows)
	if err != nil {
		return BlockInfo{}, fmt.Errorf("%w: rows: %w", ErrBlockTooLarge, err)
	}

	packed, used, err := compress.Encode(w.opts.codec, w.packed, raw)
	if err != nil {
		return BlockInfo{}, err
	}
	w.packed = packed
	onDisk, err := conv.IntToUint32(len(packed))
	if err != nil {
		return BlockInfo{}, fmt.Errorf("%w: %w", ErrBlockTooLarge, err)
	}

	info := BlockInfo{
		Offset:      w.off,
		OnDiskSize:  onDisk,
		DecodedSize: decoded,
		RowCount:    rowCount,
		Codec:       used,
	}
	if w.opts.checksums {
		info.Checksum = Checksum(packed)
	}

	if err := w.write(packed); err != nil {
		return BlockInfo{}, err
	}
	w.index[col] = append(w.index[col], info)
	return info, nil
}

// WriteValues encodes vals with the value codec and writes them as one block of col.
func (w *Writer) WriteValues(col int, vals []codec.Value) (BlockInfo, error) {
	encoded, err := w.opts.valueCodec.AppendValues(w.encoded[:0], vals)
	if err != nil {
		return BlockInfo{}, err
	}
	w.encoded = encoded
	return w.WriteBlock(col, encoded, len(vals))
}

// Close writes the index and footer and returns the index.
// It does not close the underlying writer.
func (w *Writer) Close() (Index, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	w.closed = true

	indexOffset := w.off
	tail := AppendIndex(nil, w.index)
	tail = AppendFooter(tail, indexOffset)
	if err := w.write(tail); err != nil {
		return nil, err
	}
	return w.index, nil
}

// Size returns the bytes written so far.
func (w *Writer) Size() uint64 {
	return w.off
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.off += uint64(n)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}
