// Package segment defines the on-disk layout of a segment file and writes it.
//
// A segment holds interleaved, independently compressed blocks for one or
// more columns:
//
//	[block]* [index] [footer]
//
// The index starts with the magic "CFSX" and a version byte followed by a
// msgpack array (one entry per column) of arrays (one entry per block) of
// BlockInfo tuples. The footer is the index offset as a little-endian uint64
// in the last 8 bytes of the file.
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/colframe/internal/compress"
	"github.com/hupe1980/colframe/internal/hash"
	"github.com/tinylib/msgp/msgp"
)

const (
	// Magic prefixes the serialized block index.
	Magic = "CFSX"
	// Version is the current index format version.
	Version uint8 = 1
	// FooterSize is the size of the trailing index offset.
	FooterSize = 8

	blockInfoFields = 6
	indexHeaderSize = len(Magic) + 1
)

// Codec identifies the block compression codec.
type Codec = compress.Codec

const (
	CodecNone   = compress.None
	CodecLZ4    = compress.LZ4
	CodecZstd   = compress.Zstd
	CodecSnappy = compress.Snappy
)

var (
	ErrInvalidMagic       = errors.New("segment: invalid index magic")
	ErrUnsupportedVersion = errors.New("segment: unsupported index version")
	ErrCorruptIndex       = errors.New("segment: corrupt block index")
	ErrTruncated          = errors.New("segment: file truncated")
	ErrChecksumMismatch   = errors.New("segment: block checksum mismatch")
)

// Checksum returns the CRC32C of b.
func Checksum(b []byte) uint32 {
	return hash.CRC32C(b)
}

// BlockInfo locates and describes one block.
type BlockInfo struct {
	Offset      uint64 // byte offset of the block in the segment
	OnDiskSize  uint32 // stored (possibly compressed) size
	DecodedSize uint32 // size after decompression
	RowCount    uint32
	Codec       Codec
	Checksum    uint32 // CRC32C of the stored bytes; 0 when not recorded
}

// End returns the offset one past the block's last stored byte.
func (b BlockInfo) End() uint64 {
	return b.Offset + uint64(b.OnDiskSize)
}

// Verify checks raw against the recorded checksum.
func (b BlockInfo) Verify(raw []byte) error {
	if b.Checksum == 0 {
		return nil
	}
	if got := Checksum(raw); got != b.Checksum {
		return fmt.Errorf("%w: want %08x, got %08x", ErrChecksumMismatch, b.Checksum, got)
	}
	return nil
}

// Index is the per-column, per-block table of a segment.
type Index [][]BlockInfo

// NumColumns returns the number of columns in the segment.
func (idx Index) NumColumns() int { return len(idx) }

// NumBlocks returns the number of blocks of col, or 0 if col is out of range.
func (idx Index) NumBlocks(col int) int {
	if col < 0 || col >= len(idx) {
		return 0
	}
	return len(idx[col])
}

// Block returns the info of one block.
func (idx Index) Block(col, block int) (BlockInfo, bool) {
	if col < 0 || col >= len(idx) || block < 0 || block >= len(idx[col]) {
		return BlockInfo{}, false
	}
	return idx[col][block], true
}

// RowCount returns the total rows of col.
func (idx Index) RowCount(col int) uint64 {
	if col < 0 || col >= len(idx) {
		return 0
	}
	var n uint64
	for _, b := range idx[col] {
		n += uint64(b.RowCount)
	}
	return n
}

// AppendIndex serializes idx (without footer) and appends it to dst.
func AppendIndex(dst []byte, idx Index) []byte {
	dst = append(dst, Magic...)
	dst = append(dst, Version)
	dst = msgp.AppendArrayHeader(dst, uint32(len(idx)))
	for _, col := range idx {
		dst = msgp.AppendArrayHeader(dst, uint32(len(col)))
		for _, b := range col {
			dst = msgp.AppendArrayHeader(dst, blockInfoFields)
			dst = msgp.AppendUint64(dst, b.Offset)
			dst = msgp.AppendUint32(dst, b.OnDiskSize)
			dst = msgp.AppendUint32(dst, b.DecodedSize)
			dst = msgp.AppendUint32(dst, b.RowCount)
			dst = msgp.AppendUint8(dst, uint8(b.Codec))
			dst = msgp.AppendUint32(dst, b.Checksum)
		}
	}
	return dst
}

// DecodeIndex parses a serialized index.
func DecodeIndex(b []byte) (Index, error) {
	if len(b) < indexHeaderSize {
		return nil, fmt.Errorf("%w: index too short", ErrCorruptIndex)
	}
	if string(b[:len(Magic)]) != Magic {
		return nil, ErrInvalidMagic
	}
	if v := b[len(Magic)]; v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	b = b[indexHeaderSize:]

	ncols, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	if int(ncols) > len(b) {
		return nil, fmt.Errorf("%w: %d columns in %d bytes", ErrCorruptIndex, ncols, len(b))
	}

	idx := make(Index, ncols)
	for c := range idx {
		var nblocks uint32
		nblocks, b, err = msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return nil, fmt.Errorf("%w: column %d: %w", ErrCorruptIndex, c, err)
		}
		if int(nblocks) > len(b) {
			return nil, fmt.Errorf("%w: column %d: %d blocks in %d bytes", ErrCorruptIndex, c, nblocks, len(b))
		}
		blocks := make([]BlockInfo, nblocks)
		for i := range blocks {
			blocks[i], b, err = readBlockInfo(b)
			if err != nil {
				return nil, fmt.Errorf("%w: column %d block %d: %w", ErrCorruptIndex, c, i, err)
			}
		}
		idx[c] = blocks
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptIndex, len(b))
	}
	return idx, nil
}

func readBlockInfo(b []byte) (BlockInfo, []byte, error) {
	var (
		info  BlockInfo
		n     uint32
		codec uint8
		err   error
	)
	if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return info, b, err
	}
	if n != blockInfoFields {
		return info, b, fmt.Errorf("expected %d fields, got %d", blockInfoFields, n)
	}
	if info.Offset, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return info, b, err
	}
	if info.OnDiskSize, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return info, b, err
	}
	if info.DecodedSize, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return info, b, err
	}
	if info.RowCount, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return info, b, err
	}
	if codec, b, err = msgp.ReadUint8Bytes(b); err != nil {
		return info, b, err
	}
	info.Codec = Codec(codec)
	if !info.Codec.Valid() {
		return info, b, fmt.Errorf("unknown codec %d", codec)
	}
	if info.Checksum, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return info, b, err
	}
	return info, b, nil
}

// AppendFooter appends the 8-byte footer pointing at indexOffset.
func AppendFooter(dst []byte, indexOffset uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, indexOffset)
}

// ReadIndex reads the footer and block index of a segment of the given size.
// Every block is checked to lie before the index.
func ReadIndex(r io.ReaderAt, size int64) (Index, error) {
	if size < int64(FooterSize+indexHeaderSize) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, size)
	}

	var footer [FooterSize]byte
	if err := readFull(r, footer[:], size-FooterSize); err != nil {
		return nil, fmt.Errorf("%w: read footer: %w", ErrTruncated, err)
	}
	indexOffset := binary.LittleEndian.Uint64(footer[:])
	indexEnd := uint64(size - FooterSize)
	if indexOffset > indexEnd || indexEnd-indexOffset < uint64(indexHeaderSize) {
		return nil, fmt.Errorf("%w: index offset %d outside file of %d bytes", ErrCorruptIndex, indexOffset, size)
	}

	buf := make([]byte, indexEnd-indexOffset)
	if err := readFull(r, buf, int64(indexOffset)); err != nil {
		return nil, fmt.Errorf("%w: read index: %w", ErrTruncated, err)
	}

	idx, err := DecodeIndex(buf)
	if err != nil {
		return nil, err
	}
	for c, col := range idx {
		for i, b := range col {
			if b.End() > indexOffset {
				return nil, fmt.Errorf("%w: column %d block %d extends past index", ErrCorruptIndex, c, i)
			}
		}
	}
	return idx, nil
}

// readFull accepts io.EOF alongside a complete read, as io.ReaderAt allows.
func readFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
