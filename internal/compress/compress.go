// Package compress implements the fixed-block codecs used for segment blocks.
//
// A codec compresses one block at a time; the decoded size is always known from
// the block index, so no framing is written around the payload.
package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression algorithm of a block.
type Codec uint8

const (
	// None stores the block bytes as-is.
	None Codec = 0
	// LZ4 is LZ4 block compression (fast decode, the default).
	LZ4 Codec = 1
	// Zstd is Zstandard (better ratio for cold data).
	Zstd Codec = 2
	// Snappy is Snappy block compression.
	Snappy Codec = 3
)

var (
	// ErrUnknownCodec is returned for a codec id this build does not know.
	ErrUnknownCodec = errors.New("compress: unknown codec")
	// ErrSizeMismatch is returned when a block decodes to an unexpected length.
	ErrSizeMismatch = errors.New("compress: decoded size mismatch")
)

// minSavings is the fraction a codec must shave off before we keep its output.
const minSavings = 0.9

// MaxDecodedSize is the largest decoded block Decode accepts.
const MaxDecodedSize = 1 << 30

// lz4MaxRatio bounds how far one LZ4 input byte can expand.
const lz4MaxRatio = 255

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case Snappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Valid reports whether c is a known codec.
func (c Codec) Valid() bool {
	return c <= Snappy
}

// ParseCodec maps a codec name to its id.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "snappy":
		return Snappy, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(MaxDecodedSize),
	)
}

// Encode compresses src with c and appends the result to dst[:0].
//
// The returned codec is the one actually used: when c does not save at least
// 10% the block is kept raw and None is returned.
func Encode(c Codec, dst, src []byte) ([]byte, Codec, error) {
	if c == None || len(src) == 0 {
		return append(dst[:0], src...), None, nil
	}

	var (
		out []byte
		err error
	)
	switch c {
	case LZ4:
		out, err = encodeLZ4(dst, src)
	case Zstd:
		var enc *zstd.Encoder
		enc, err = getZstdEncoder()
		if err == nil {
			out = enc.EncodeAll(src, dst[:0])
			zstdEncoderPool.Put(enc)
		}
	case Snappy:
		out = snappy.Encode(dst[:cap(dst)], src)
	default:
		return nil, None, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(c))
	}
	if err != nil {
		return nil, None, err
	}

	if len(out) == 0 || float64(len(out)) > float64(len(src))*minSavings {
		return append(out[:0], src...), None, nil
	}
	return out, c, nil
}

func encodeLZ4(dst, src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	if cap(dst) < bound {
		dst = make([]byte, bound)
	}
	dst = dst[:bound]

	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, err
	}
	// n == 0 means incompressible.
	return dst[:n], nil
}

// Decode decompresses src, which was produced by codec c, into dst.
// dst is grown to decodedSize when its capacity is insufficient.
//
// decodedSize comes from the block index and is checked against what src can
// plausibly expand to before anything is allocated.
func Decode(c Codec, dst, src []byte, decodedSize int) ([]byte, error) {
	if err := checkDecodedSize(c, src, decodedSize); err != nil {
		return nil, err
	}
	if c == Zstd || c == Snappy {
		return decodeFramed(c, dst, src, decodedSize)
	}
	if cap(dst) < decodedSize {
		dst = make([]byte, decodedSize)
	}
	dst = dst[:decodedSize]

	switch c {
	case None:
		copy(dst, src)
		return dst, nil

	case LZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if n != decodedSize {
			return nil, ErrSizeMismatch
		}
		return dst, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(c))
	}
}

// checkDecodedSize rejects sizes src cannot decode to.
func checkDecodedSize(c Codec, src []byte, decodedSize int) error {
	if decodedSize < 0 || decodedSize > MaxDecodedSize {
		return fmt.Errorf("%w: %d bytes", ErrSizeMismatch, decodedSize)
	}
	switch c {
	case None:
		if len(src) != decodedSize {
			return ErrSizeMismatch
		}
	case LZ4:
		if decodedSize > len(src)*lz4MaxRatio {
			return fmt.Errorf("%w: %d bytes from %d", ErrSizeMismatch, decodedSize, len(src))
		}
	case Zstd:
		var h zstd.Header
		if err := h.Decode(src); err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		if h.HasFCS && h.FrameContentSize != uint64(decodedSize) {
			return ErrSizeMismatch
		}
	case Snappy:
		n, err := snappy.DecodedLen(src)
		if err != nil {
			return fmt.Errorf("snappy: %w", err)
		}
		if n != decodedSize {
			return ErrSizeMismatch
		}
	}
	return nil
}

// decodeFramed decodes codecs whose payload records its own length. The
// output grows with what actually decodes.
func decodeFramed(c Codec, dst, src []byte, decodedSize int) ([]byte, error) {
	switch c {
	case Zstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if len(out) != decodedSize {
			return nil, ErrSizeMismatch
		}
		return out, nil

	case Snappy:
		out, err := snappy.Decode(dst[:cap(dst)], src)
		if err != nil {
			return nil, fmt.Errorf("snappy: %w", err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(c))
	}
}
