package table

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/colframe/arraygroup"
	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/blockmanager"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value is the content of row r of global column c.
func value(c, r int) codec.Value {
	if c%2 == 1 {
		return codec.Float(float64(r) + float64(c)/10)
	}
	return codec.Int(int64(r*10 + c))
}

// writeGroup writes an array group whose global columns start at firstCol.
func writeGroup(t *testing.T, store blobstore.BlobStore, name string, firstCol, numCols int, segRows []int) {
	t.Helper()
	defs := make([]arraygroup.ColumnDef, numCols)
	for c := range defs {
		kind := codec.KindInt
		if (firstCol+c)%2 == 1 {
			kind = codec.KindFloat
		}
		defs[c] = arraygroup.ColumnDef{Name: name + string(rune('a'+c)), Kind: kind}
	}

	w, err := arraygroup.NewWriter(context.Background(), store, name, defs, len(segRows), arraygroup.WithBlockRows(4))
	require.NoError(t, err)
	first := 0
	for s, n := range segRows {
		for c := 0; c < numCols; c++ {
			vals := make([]codec.Value, n)
			for i := range vals {
				vals[i] = value(firstCol+c, first+i)
			}
			require.NoError(t, w.Append(s, c, vals))
		}
		first += n
	}
	_, err = w.Close()
	require.NoError(t, err)
}

func openTable(t *testing.T, segRows []int) (*Table, *blockmanager.Manager) {
	t.Helper()
	store := blobstore.NewMemoryStore()
	writeGroup(t, store, "g/left", 0, 2, segRows)
	writeGroup(t, store, "g/right", 2, 1, segRows)

	mgr := blockmanager.New(store, blockmanager.WithMaxOpenHandles(2))
	t.Cleanup(func() { _ = mgr.Close() })

	tbl, err := Open(context.Background(), mgr, store, "g/left", "g/right")
	require.NoError(t, err)
	return tbl, mgr
}

func expectedRow(r int, cols ...int) []codec.Value {
	row := make([]codec.Value, len(cols))
	for i, c := range cols {
		row[i] = value(c, r)
	}
	return row
}

func TestOpenAndRead(t *testing.T) {
	tbl, _ := openTable(t, []int{5, 0, 9, 3})
	defer tbl.Close()

	assert.Equal(t, 3, tbl.NumColumns())
	assert.Equal(t, uint64(17), tbl.NumRows())
	assert.Equal(t, []string{"g/lefta", "g/leftb", "g/righta"}, tbl.ColumnNames())
	assert.Equal(t, []codec.Kind{codec.KindInt, codec.KindFloat, codec.KindInt}, tbl.Kinds())
	assert.Equal(t, 2+0+3+1, tbl.Column(0).NumBlocks())

	rows, err := tbl.ReadRows(3, 15)
	require.NoError(t, err)
	require.Len(t, rows, 12)
	for i, row := range rows {
		assert.Equal(t, expectedRow(3+i, 0, 1, 2), row)
	}

	rows, err = tbl.ReadRows(7, 7)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = tbl.ReadRows(10, 18)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRows(t *testing.T) {
	tbl, _ := openTable(t, []int{6, 7})
	defer tbl.Close()

	var sizes []int
	next := 2
	for rows, err := range tbl.Rows(2, 13, 4) {
		require.NoError(t, err)
		sizes = append(sizes, len(rows))
		for _, row := range rows {
			assert.Equal(t, expectedRow(next, 0, 1, 2), row)
			next++
		}
	}
	assert.Equal(t, []int{4, 4, 3}, sizes)
	assert.Equal(t, 13, next)

	var got error
	for _, err := range tbl.Rows(0, 14, 4) {
		got = err
	}
	assert.ErrorIs(t, got, ErrOutOfRange)

	// Breaking out early stops the iteration.
	batches := 0
	for range tbl.Rows(0, 13, 1) {
		batches++
		if batches == 2 {
			break
		}
	}
	assert.Equal(t, 2, batches)
}

func TestOpenReleasesOnMismatch(t *testing.T) {
	store := blobstore.NewMemoryStore()
	writeGroup(t, store, "a", 0, 2, []int{4, 4})
	writeGroup(t, store, "b", 2, 1, []int{4, 5})

	mgr := blockmanager.New(store)
	defer mgr.Close()

	_, err := Open(context.Background(), mgr, store, "a", "b")
	require.ErrorIs(t, err, ErrRowCountMismatch)
	assert.Equal(t, 0, mgr.Stats().ReferencedSegs)

	_, err = Open(context.Background(), mgr, store, "a", "missing")
	require.ErrorIs(t, err, arraygroup.ErrNotFound)
	assert.Equal(t, 0, mgr.Stats().ReferencedSegs)
}

func TestCloseReleasesSegments(t *testing.T) {
	tbl, mgr := openTable(t, []int{3, 3})
	assert.Equal(t, 4, mgr.Stats().ReferencedSegs)

	sel := tbl.Select([]int{2, 0, 2})
	require.NoError(t, sel.Close())
	assert.Equal(t, 4, mgr.Stats().ReferencedSegs)

	require.NoError(t, tbl.Close())
	assert.Equal(t, 0, mgr.Stats().ReferencedSegs)
	require.NoError(t, tbl.Close())
}

func TestSelect(t *testing.T) {
	tbl, _ := openTable(t, []int{5, 5})
	defer tbl.Close()

	sel := tbl.Select([]int{2, 0, 2})
	assert.Equal(t, []string{"g/righta", "g/lefta", "g/righta"}, sel.ColumnNames())
	assert.Equal(t, tbl.NumRows(), sel.NumRows())

	rows, err := sel.ReadRows(4, 6)
	require.NoError(t, err)
	assert.Equal(t, [][]codec.Value{expectedRow(4, 2, 0, 2), expectedRow(5, 2, 0, 2)}, rows)

	src := tbl.SelectColumns([]int{1})
	assert.Equal(t, 1, src.NumColumns())
	assert.Equal(t, uint64(10), src.NumRows())

	assert.Panics(t, func() { tbl.Select([]int{3}) })
}

func TestNewRejectsMismatchedColumns(t *testing.T) {
	store := blobstore.NewMemoryStore()
	writeGroup(t, store, "a", 0, 1, []int{4})
	writeGroup(t, store, "b", 0, 1, []int{5})
	mgr := blockmanager.New(store)
	defer mgr.Close()

	a, err := Open(context.Background(), mgr, store, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(context.Background(), mgr, store, "b")
	require.NoError(t, err)
	defer b.Close()

	_, err = New(a.Column(0), b.Column(0))
	assert.ErrorIs(t, err, ErrRowCountMismatch)
}

func TestScanSelected(t *testing.T) {
	tbl, mgr := openTable(t, []int{8, 8, 8})
	defer tbl.Close()

	// Rows 1 and 2 share the first block; 21 sits in the last segment.
	sel := roaring.BitmapOf(1, 2, 21)
	before := mgr.Stats().BlockReads

	var got []uint64
	err := tbl.ScanSelected(sel, func(row uint64, values []codec.Value) error {
		got = append(got, row)
		assert.Equal(t, expectedRow(int(row), 0, 1, 2), values)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 21}, got)
	// Two blocks per column are touched out of six.
	assert.Equal(t, int64(2*3), mgr.Stats().BlockReads-before)

	err = tbl.ScanSelected(roaring.BitmapOf(3, 24), func(uint64, []codec.Value) error { return nil })
	assert.ErrorIs(t, err, ErrOutOfRange)

	stop := errors.New("stop")
	err = tbl.ScanSelected(sel, func(uint64, []codec.Value) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestPartition(t *testing.T) {
	const n = 10
	var covered uint64
	prev := uint64(0)
	for th := 0; th < 3; th++ {
		s, e := Partition(n, th, 3)
		assert.Equal(t, prev, s)
		covered += e - s
		prev = e
	}
	assert.Equal(t, uint64(n), covered)

	s, e := Partition(2, 3, 4)
	assert.Equal(t, uint64(1), s)
	assert.Equal(t, uint64(2), e)
}

func TestScanParallel(t *testing.T) {
	tbl, _ := openTable(t, []int{7, 9, 4})
	defer tbl.Close()
	other := tbl.Select([]int{2})

	var (
		mu   sync.Mutex
		seen = map[uint64]int{}
	)
	err := ScanParallel(context.Background(), []*Table{tbl, other}, 3, nil, func(thread int, row uint64, values [][]codec.Value) error {
		start, end := Partition(tbl.NumRows(), thread, 3)
		if row < start || row >= end {
			return errors.New("row outside the thread's range")
		}
		if len(values) != 2 || !assert.Equal(t, expectedRow(int(row), 0, 1, 2), values[0]) || !assert.Equal(t, expectedRow(int(row), 2), values[1]) {
			return errors.New("unexpected values")
		}
		mu.Lock()
		seen[row]++
		mu.Unlock()
		return nil
	}, WithBatchRows(5))
	require.NoError(t, err)

	require.Len(t, seen, 20)
	for r := uint64(0); r < 20; r++ {
		assert.Equal(t, 1, seen[r], "row %d", r)
	}
}

func TestScanParallelResourceBound(t *testing.T) {
	tbl, _ := openTable(t, []int{6, 6})
	defer tbl.Close()

	rc := resource.NewController(resource.Config{MaxScanWorkers: 2})
	var threads int
	pf := func(n int, fn func(thread, threads int) error) error {
		threads = n
		for i := 0; i < n; i++ {
			if err := fn(i, n); err != nil {
				return err
			}
		}
		return nil
	}

	var rows int
	err := ScanParallel(context.Background(), []*Table{tbl}, 8, pf, func(int, uint64, [][]codec.Value) error {
		rows++
		return nil
	}, WithResourceController(rc))
	require.NoError(t, err)
	assert.Equal(t, 2, threads)
	assert.Equal(t, 12, rows)
}

func TestScanParallelErrors(t *testing.T) {
	tbl, _ := openTable(t, []int{6, 6})
	defer tbl.Close()

	boom := errors.New("boom")
	err := ScanParallel(context.Background(), []*Table{tbl}, 4, nil, func(_ int, row uint64, _ [][]codec.Value) error {
		if row == 7 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ScanParallel(ctx, []*Table{tbl}, 2, nil, func(int, uint64, [][]codec.Value) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	store := blobstore.NewMemoryStore()
	writeGroup(t, store, "short", 0, 1, []int{3})
	mgr := blockmanager.New(store)
	defer mgr.Close()
	short, err := Open(context.Background(), mgr, store, "short")
	require.NoError(t, err)
	defer short.Close()

	err = ScanParallel(context.Background(), []*Table{tbl, short}, 2, nil, func(int, uint64, [][]codec.Value) error { return nil })
	assert.ErrorIs(t, err, ErrRowCountMismatch)

	assert.NoError(t, ScanParallel(context.Background(), nil, 2, nil, nil))
}
