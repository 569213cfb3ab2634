package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "subdir")
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "test.txt")
	f, err := lfs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	require.NoError(t, f.Close())

	renamed := filepath.Join(dir, "renamed.txt")
	require.NoError(t, lfs.Rename(path, renamed))

	r, err := Open(lfs, renamed)
	require.NoError(t, err)
	p := make([]byte, 3)
	_, err = r.ReadAt(p, 2)
	require.NoError(t, err)
	assert.Equal(t, "llo", string(p))
	require.NoError(t, r.Close())

	require.NoError(t, lfs.Remove(renamed))
	_, err = os.Stat(renamed)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeTemp(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestFaultyFS_ReadFaults(t *testing.T) {
	ffs := NewFaultyFS(nil)
	path := writeTemp(t, "seg.0001", "0123456789")

	ffs.AddRule("seg.0001", Fault{FailReadAt: true})
	f, err := Open(ffs, path)
	require.NoError(t, err)
	_, err = f.ReadAt(make([]byte, 4), 0)
	assert.ErrorIs(t, err, ErrInjected)
	require.NoError(t, f.Close())

	ffs.AddRule("seg.0001", Fault{ShortReadAt: true})
	f, err = Open(ffs, path)
	require.NoError(t, err)
	n, err := f.ReadAt(make([]byte, 4), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, f.Close())

	ffs.AddRule("seg.0001", Fault{CorruptReadAt: true})
	f, err = Open(ffs, path)
	require.NoError(t, err)
	p := make([]byte, 2)
	_, err = f.ReadAt(p, 0)
	require.NoError(t, err)
	assert.NotEqual(t, byte('0'), p[0])
	assert.Equal(t, byte('1'), p[1])
	require.NoError(t, f.Close())
}

func TestFaultyFS_FailOpen(t *testing.T) {
	ffs := NewFaultyFS(nil)
	path := writeTemp(t, "seg.0002", "x")
	ffs.AddRule("seg.0002", Fault{FailOpen: true})

	_, err := Open(ffs, path)
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, ffs.OpenFiles())

	ffs.ClearRules()
	f, err := Open(ffs, path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFaultyFS_OpenCounting(t *testing.T) {
	ffs := NewFaultyFS(nil)
	path := writeTemp(t, "seg.0003", "x")

	a, err := Open(ffs, path)
	require.NoError(t, err)
	b, err := Open(ffs, path)
	require.NoError(t, err)
	assert.Equal(t, 2, ffs.OpenFiles())

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	_ = b.Close() // double close is not counted twice

	assert.Equal(t, 0, ffs.OpenFiles())
	assert.Equal(t, 2, ffs.MaxOpenFiles())
	assert.Equal(t, 2, ffs.Opens())
}

func TestFaultyFS_WriteLimit(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.SetWriteLimit(8)

	f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "w"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("12345"))
	require.NoError(t, err)
	_, err = f.Write([]byte("67890"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, int64(5), ffs.Written())
}
