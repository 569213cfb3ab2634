package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seg.0000")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMapping(t *testing.T) {
	m, err := Open(writeFile(t, []byte("hello mapped world")))
	require.NoError(t, err)

	assert.Equal(t, int64(18), m.Size())

	b, err := m.Slice(6, 6)
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(b))

	_, err = m.Slice(10, 20)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	p := make([]byte, 5)
	n, err := m.ReadAt(p, 13)
	require.NoError(t, err)
	assert.Equal(t, "world", string(p[:n]))

	n, err = m.ReadAt(make([]byte, 10), 13)
	assert.Equal(t, 5, n)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, m.Advise(AccessRandom))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Slice(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.ReadAt(p, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMapping_Empty(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int64(0), m.Size())
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMapping_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
