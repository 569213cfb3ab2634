package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"
)

func TestBinaryRoundTrip(t *testing.T) {
	vals := []Value{
		Null(),
		Int(-42),
		Int(1 << 40),
		Float(3.25),
		String("colframe"),
		String(""),
		Bytes([]byte{0, 1, 2}),
	}

	var c Binary
	enc, err := c.AppendValues(nil, vals)
	require.NoError(t, err)
	assert.Equal(t, c.Version(), enc[0])

	got, err := c.DecodeValues(enc, nil)
	require.NoError(t, err)
	require.Len(t, got, len(vals))
	for i := range vals {
		assert.True(t, vals[i].Equal(got[i]), "value %d: want %s got %s", i, vals[i], got[i])
	}
}

func TestBinaryAppendsToDst(t *testing.T) {
	var c Binary
	enc, err := c.AppendValues(nil, []Value{Int(1), Int(2)})
	require.NoError(t, err)

	got, err := c.DecodeValues(enc, []Value{String("head")})
	require.NoError(t, err)
	assert.Equal(t, []Value{String("head"), Int(1), Int(2)}, got)
}

func TestBinaryRejectsOtherVersion(t *testing.T) {
	var c Binary
	enc, err := c.AppendValues(nil, []Value{Int(1)})
	require.NoError(t, err)

	enc[0] = 99
	_, err = c.DecodeValues(enc, nil)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestBinaryTruncated(t *testing.T) {
	var c Binary
	enc, err := c.AppendValues(nil, []Value{String("hello world")})
	require.NoError(t, err)

	_, err = c.DecodeValues(enc[:len(enc)-3], nil)
	assert.Error(t, err)

	_, err = c.DecodeValues(nil, nil)
	assert.Error(t, err)
}

func TestBinaryRejectsOversizedArrayHeader(t *testing.T) {
	var c Binary
	enc, err := c.AppendValues(nil, []Value{Int(7)})
	require.NoError(t, err)

	// Rewrite the one-element header as an array32 of 2^32-1 elements.
	lying := append([]byte{enc[0]}, msgp.AppendArrayHeader(nil, 1<<32-1)...)
	lying = append(lying, enc[2:]...)

	_, err = c.DecodeValues(lying, nil)
	assert.ErrorIs(t, err, msgp.ErrShortBytes)
}

func TestValueAccessors(t *testing.T) {
	assert.Equal(t, int64(7), Int(7).AsInt())
	assert.Equal(t, 7.0, Int(7).AsFloat())
	assert.Equal(t, int64(2), Float(2.9).AsInt())
	assert.Equal(t, "x", String("x").AsString())
	assert.Equal(t, []byte("x"), String("x").AsBytes())
	assert.True(t, Null().IsNull())
	assert.False(t, Null().Truthy())
	assert.True(t, Int(1).Truthy())
	assert.False(t, Int(0).Truthy())
	assert.False(t, Int(1).Equal(Float(1)))
	assert.Equal(t, `"a"`, String("a").String())
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	vc, ok := ValueCodecByName("msgpack")
	require.True(t, ok)
	assert.Equal(t, uint8(1), vc.Version())

	_, ok = ValueCodecByName("gob")
	assert.False(t, ok)
}

func TestKindText(t *testing.T) {
	for k := KindNull; k <= KindBytes; k++ {
		b, err := k.MarshalText()
		require.NoError(t, err)

		var got Kind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("decimal")
	assert.Error(t, err)
}
