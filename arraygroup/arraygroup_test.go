package arraygroup

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ints(first, n int) []codec.Value {
	vals := make([]codec.Value, n)
	for i := range vals {
		vals[i] = codec.Int(int64(first + i))
	}
	return vals
}

func strs(n int) []codec.Value {
	vals := make([]codec.Value, n)
	for i := range vals {
		vals[i] = codec.String("s")
	}
	return vals
}

func TestWriterAndLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	cols := []ColumnDef{
		{Name: "id", Kind: codec.KindInt},
		{Name: "name", Kind: codec.KindString, Metadata: map[string]string{"unit": "none"}},
	}
	w, err := NewWriter(ctx, store, "tables/users", cols, 3, WithBlockRows(4))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for s := 0; s < w.NumSegments(); s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			rows := 5 + s*3
			assert.NoError(t, w.Append(s, 0, ints(s*100, rows)))
			assert.NoError(t, w.Append(s, 1, strs(rows)))
		}(s)
	}
	wg.Wait()

	written, err := w.Close()
	require.NoError(t, err)
	assert.Equal(t, uint64(5+8+11), written.NumRows())

	names, err := store.List(ctx, "tables/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/users", "tables/users.0000", "tables/users.0001", "tables/users.0002"}, names)

	idx, err := Load(ctx, store, "tables/users")
	require.NoError(t, err)
	require.NoError(t, idx.Validate())
	assert.Equal(t, written.ID, idx.ID)
	assert.Equal(t, 2, idx.NumColumns())
	assert.Equal(t, 3, idx.NumSegments())
	assert.Equal(t, []uint64{5, 8, 11}, idx.Columns[1].SegmentRows)
	assert.Equal(t, codec.KindString, idx.Columns[1].Kind)
	assert.Equal(t, "none", idx.Columns[1].Metadata["unit"])
	assert.Equal(t, "tables/users.0002:1", idx.ColumnSpec(1, 2))

	// Segment 2 holds 11 rows per column: blocks of 4, 4 and 3.
	data, err := blobstore.ReadAll(ctx, store, idx.SegmentPath(2))
	require.NoError(t, err)
	segIdx, err := segment.ReadIndex(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, 3, segIdx.NumBlocks(0))
	assert.Equal(t, uint32(3), segIdx[0][2].RowCount)
	assert.Equal(t, uint64(11), segIdx.RowCount(1))
}

func TestWriterRowCountMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	w, err := NewWriter(ctx, store, "t", []ColumnDef{{Name: "a", Kind: codec.KindInt}, {Name: "b", Kind: codec.KindInt}}, 1)
	require.NoError(t, err)
	require.NoError(t, w.Append(0, 0, ints(0, 3)))
	require.NoError(t, w.Append(0, 1, ints(0, 2)))

	_, err = w.Close()
	require.ErrorIs(t, err, ErrRowCountMismatch)

	_, err = Load(ctx, store, "t")
	require.ErrorIs(t, err, ErrNotFound)
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	assert.ErrorIs(t, w.Append(0, 0, ints(0, 1)), ErrWriterClosed)
}

func TestWriterValidation(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	_, err := NewWriter(ctx, store, "t", nil, 1)
	require.ErrorIs(t, err, ErrInvalidIndex)
	_, err = NewWriter(ctx, store, "t", []ColumnDef{{Name: "a"}}, 0)
	require.ErrorIs(t, err, ErrInvalidIndex)

	w, err := NewWriter(ctx, store, "t", []ColumnDef{{Name: "a", Kind: codec.KindInt}}, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, w.Append(0, 0, []codec.Value{codec.String("x")}), ErrKindMismatch)
	assert.NoError(t, w.Append(0, 0, []codec.Value{codec.Null(), codec.Int(1)}))
	assert.ErrorIs(t, w.Append(1, 0, nil), segment.ErrColumnRange)
	assert.ErrorIs(t, w.Append(0, 1, nil), segment.ErrColumnRange)
}

func TestIndexValidate(t *testing.T) {
	idx := NewIndex("t", []string{"t.0000", "t.0001"}, []ColumnMeta{
		{Name: "a", SegmentRows: []uint64{1, 2}},
		{Name: "b", SegmentRows: []uint64{1, 3}},
	})
	assert.ErrorIs(t, idx.Validate(), ErrRowCountMismatch)

	idx.Columns[1].SegmentRows = []uint64{1}
	assert.ErrorIs(t, idx.Validate(), ErrInvalidIndex)

	idx.Columns[1].SegmentRows = []uint64{1, 2}
	assert.NoError(t, idx.Validate())
	assert.Equal(t, uint64(3), idx.NumRows())

	idx.Version = 99
	assert.ErrorIs(t, idx.Validate(), ErrUnsupportedVersion)
}

func TestLoadInvalid(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "broken", []byte("{not json")))

	_, err := Load(ctx, store, "broken")
	require.ErrorIs(t, err, ErrInvalidIndex)

	require.NoError(t, store.Put(ctx, "short", []byte(`{"version":1,"segment_files":["a"],"columns":[{"name":"x","kind":"int","segment_rows":[]}]}`)))
	_, err = Load(ctx, store, "short")
	require.ErrorIs(t, err, ErrInvalidIndex)
}
