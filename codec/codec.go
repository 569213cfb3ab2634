// Package codec centralizes value and metadata encoding.
//
// Two codec families live here:
//
//   - ValueCodec encodes typed column values into block payloads. The block
//     manager only ever calls its decode side.
//   - Codec encodes metadata documents such as array-group index files.
//
// Codec selection is a breaking-change boundary: bytes written by one codec
// version are not readable by another. Every encoded block therefore starts
// with the codec version, and index files record the codec name.
package codec

import "fmt"

// Codec encodes/decodes metadata documents.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ValueCodec encodes and decodes slices of typed values.
// Implementations must be safe for concurrent use.
type ValueCodec interface {
	// Name returns the stable codec name.
	Name() string
	// Version is written as the first byte of every encoded payload.
	Version() uint8
	// AppendValues encodes vals and appends them to dst.
	AppendValues(dst []byte, vals []Value) ([]byte, error)
	// DecodeValues decodes src and appends the values to dst.
	DecodeValues(src []byte, dst []Value) ([]Value, error)
}

// ByName returns a built-in metadata codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// ValueCodecByName returns a built-in value codec by its stable name.
func ValueCodecByName(name string) (ValueCodec, bool) {
	switch name {
	case Binary{}.Name():
		return Binary{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
