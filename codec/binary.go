package codec

import (
	"errors"
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// ErrUnsupportedVersion is returned when a payload was written by a different
// value codec version.
var ErrUnsupportedVersion = errors.New("codec: unsupported value codec version")

const binaryVersion = 1

// Binary is the default ValueCodec: a version byte followed by a MessagePack
// array of values.
type Binary struct{}

// Name returns "msgpack".
func (Binary) Name() string { return "msgpack" }

// Version returns the payload version written by this codec.
func (Binary) Version() uint8 { return binaryVersion }

// AppendValues encodes vals and appends them to dst.
func (Binary) AppendValues(dst []byte, vals []Value) ([]byte, error) {
	dst = append(dst, binaryVersion)
	dst = msgp.AppendArrayHeader(dst, uint32(len(vals)))
	for _, v := range vals {
		switch v.kind {
		case KindNull:
			dst = msgp.AppendNil(dst)
		case KindInt:
			dst = msgp.AppendInt64(dst, v.AsInt())
		case KindFloat:
			dst = msgp.AppendFloat64(dst, v.AsFloat())
		case KindString:
			dst = msgp.AppendString(dst, v.str)
		case KindBytes:
			dst = msgp.AppendBytes(dst, v.raw)
		default:
			return nil, fmt.Errorf("codec: cannot encode %s", v.kind)
		}
	}
	return dst, nil
}

// DecodeValues decodes src and appends the values to dst.
// Decoded byte values are copied out of src.
func (Binary) DecodeValues(src []byte, dst []Value) ([]Value, error) {
	if len(src) == 0 {
		return nil, msgp.ErrShortBytes
	}
	if src[0] != binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, src[0])
	}

	n, rest, err := msgp.ReadArrayHeaderBytes(src[1:])
	if err != nil {
		return nil, err
	}
	// Every value takes at least one byte.
	if uint64(n) > uint64(len(rest)) {
		return nil, fmt.Errorf("codec: %d values in %d bytes: %w", n, len(rest), msgp.ErrShortBytes)
	}
	if dst == nil {
		dst = make([]Value, 0, n)
	}

	for i := uint32(0); i < n; i++ {
		var v Value
		switch msgp.NextType(rest) {
		case msgp.NilType:
			rest, err = msgp.ReadNilBytes(rest)
		case msgp.IntType, msgp.UintType:
			var x int64
			x, rest, err = msgp.ReadInt64Bytes(rest)
			v = Int(x)
		case msgp.Float64Type:
			var f float64
			f, rest, err = msgp.ReadFloat64Bytes(rest)
			v = Float(f)
		case msgp.StrType:
			var s string
			s, rest, err = msgp.ReadStringBytes(rest)
			v = String(s)
		case msgp.BinType:
			var b []byte
			b, rest, err = msgp.ReadBytesBytes(rest, nil)
			v = Bytes(b)
		default:
			return nil, fmt.Errorf("codec: unexpected msgpack type %s at value %d", msgp.NextType(rest), i)
		}
		if err != nil {
			return nil, fmt.Errorf("codec: value %d: %w", i, err)
		}
		dst = append(dst, v)
	}
	return dst, nil
}
