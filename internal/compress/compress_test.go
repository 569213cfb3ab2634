package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressible(n int) []byte {
	return bytes.Repeat([]byte("colframe-block-"), n/15+1)[:n]
}

func TestRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":        {},
		"small":        []byte("abc"),
		"compressible": compressible(64 * 1024),
	}

	for _, c := range []Codec{None, LZ4, Zstd, Snappy} {
		for name, src := range payloads {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				enc, used, err := Encode(c, nil, src)
				require.NoError(t, err)

				dec, err := Decode(used, nil, enc, len(src))
				require.NoError(t, err)
				assert.Equal(t, src, dec)
			})
		}
	}
}

func TestEncodeFallsBackToRaw(t *testing.T) {
	// Three bytes never compress by 10%.
	enc, used, err := Encode(LZ4, nil, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, None, used)
	assert.Equal(t, []byte{1, 2, 3}, enc)
}

func TestEncodeCompresses(t *testing.T) {
	src := compressible(32 * 1024)
	for _, c := range []Codec{LZ4, Zstd, Snappy} {
		enc, used, err := Encode(c, nil, src)
		require.NoError(t, err)
		assert.Equal(t, c, used)
		assert.Less(t, len(enc), len(src))
	}
}

func TestDecodeCorrupt(t *testing.T) {
	src := compressible(8 * 1024)
	for _, c := range []Codec{LZ4, Zstd, Snappy} {
		enc, used, err := Encode(c, nil, src)
		require.NoError(t, err)
		require.Equal(t, c, used)

		garbage := bytes.Repeat([]byte{0xff}, len(enc))
		_, err = Decode(c, nil, garbage, len(src))
		assert.Error(t, err, c.String())
	}
}

func TestDecodeSizeMismatch(t *testing.T) {
	_, err := Decode(None, nil, []byte{1, 2}, 3)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = Decode(Codec(42), nil, []byte{1}, 1)
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestDecodeRejectsImplausibleSize(t *testing.T) {
	src := compressible(4 * 1024)
	for _, c := range []Codec{None, LZ4, Zstd, Snappy} {
		enc, _, err := Encode(c, nil, src)
		require.NoError(t, err)

		_, err = Decode(c, nil, enc, MaxDecodedSize+1)
		assert.ErrorIs(t, err, ErrSizeMismatch, c.String())

		_, err = Decode(c, nil, enc, -1)
		assert.ErrorIs(t, err, ErrSizeMismatch, c.String())
	}

	// LZ4 cannot expand past its ratio bound even below MaxDecodedSize.
	enc, used, err := Encode(LZ4, nil, src)
	require.NoError(t, err)
	require.Equal(t, LZ4, used)
	_, err = Decode(LZ4, nil, enc, len(enc)*lz4MaxRatio+1)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestParseCodec(t *testing.T) {
	for _, c := range []Codec{None, LZ4, Zstd, Snappy} {
		got, err := ParseCodec(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCodec("brotli")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
