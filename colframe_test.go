package colframe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/colframe/arraygroup"
	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/blockmanager"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/plan"
	"github.com/hupe1980/colframe/table"
	"github.com/hupe1980/colframe/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tripColumns = []arraygroup.ColumnDef{
	{Name: "id", Kind: codec.KindInt},
	{Name: "fare", Kind: codec.KindFloat},
}

func writeTrips(t *testing.T, eng *Engine, name string, segRows ...int) {
	t.Helper()
	ctx := context.Background()
	w, err := eng.CreateArrayGroup(ctx, name, tripColumns, len(segRows), arraygroup.WithBlockRows(8))
	require.NoError(t, err)

	first := 0
	for s, n := range segRows {
		fares := make([]codec.Value, n)
		for i := range fares {
			fares[i] = codec.Float(float64(first+i) / 2)
		}
		require.NoError(t, w.Append(s, 0, testutil.Sequence(int64(first), n)))
		require.NoError(t, w.Append(s, 1, fares))
		first += n
	}
	_, err = w.Close()
	require.NoError(t, err)
}

func TestEngine(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	eng, err := Open(blobstore.NewMemoryStore(),
		WithMetricsCollector(metrics),
		WithScanWorkers(2),
		WithMaxOpenHandles(1),
	)
	require.NoError(t, err)
	defer eng.Close()

	writeTrips(t, eng, "trips", 20, 13, 30)

	tbl, err := eng.OpenTable(ctx, "trips")
	require.NoError(t, err)
	defer tbl.Close()
	assert.Equal(t, uint64(63), tbl.NumRows())
	assert.Equal(t, []string{"id", "fare"}, tbl.ColumnNames())

	t.Run("scan", func(t *testing.T) {
		var sum atomic.Int64
		err := eng.Scan(ctx, []*table.Table{tbl}, 4, func(_ int, row uint64, values [][]codec.Value) error {
			id := values[0][0].AsInt()
			if uint64(id) != row {
				return fmt.Errorf("row %d has id %v", row, values[0][0])
			}
			sum.Add(id)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(63*62/2), sum.Load())

		stats := metrics.GetStats()
		assert.Equal(t, int64(1), stats.ScanCount)
		assert.Equal(t, int64(63), stats.ScannedRows)
		assert.Positive(t, stats.BlockReads)
		assert.Positive(t, stats.BytesRead)
		assert.LessOrEqual(t, eng.Stats().MaxLiveHandles, 1)
	})

	t.Run("optimize", func(t *testing.T) {
		g := plan.NewGraph()
		root := g.Project(g.Project(g.Source(tbl), 1, 0), 1)
		res := eng.Optimize(ctx, g, root)
		require.True(t, res.Converged)
		require.Equal(t, plan.SourceNode, g.Type(res.Root))

		n := g.Node(res.Root)
		src, ok := n.SourceOf().(*table.Table)
		require.True(t, ok)
		assert.Equal(t, []string{"id"}, src.ColumnNames())
		assert.Equal(t, int64(1), metrics.GetStats().OptimizeCount)

		rows, err := src.ReadRows(60, 63)
		require.NoError(t, err)
		assert.Equal(t, [][]codec.Value{{codec.Int(60)}, {codec.Int(61)}, {codec.Int(62)}}, rows)
	})

	t.Run("cache", func(t *testing.T) {
		before := metrics.GetStats().CacheHits
		_, err := tbl.ReadRows(0, 63)
		require.NoError(t, err)
		assert.Greater(t, metrics.GetStats().CacheHits, before)
	})
}

func TestEngineErrors(t *testing.T) {
	ctx := context.Background()
	eng, err := Open(blobstore.NewMemoryStore(), WithCacheBytes(0))
	require.NoError(t, err)

	_, err = eng.OpenTable(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	writeTrips(t, eng, "a", 4)
	writeTrips(t, eng, "b", 5)
	_, err = eng.OpenTable(ctx, "a", "b")
	assert.ErrorIs(t, err, ErrRowCountMismatch)
	assert.Equal(t, 0, eng.Stats().ReferencedSegs)

	boom := errors.New("boom")
	tbl, err := eng.OpenTable(ctx, "a")
	require.NoError(t, err)
	err = eng.Scan(ctx, []*table.Table{tbl}, 1, func(int, uint64, [][]codec.Value) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, tbl.Close())

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())
	_, err = eng.OpenTable(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = eng.CreateArrayGroup(ctx, "c", tripColumns, 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, eng.Scan(ctx, nil, 1, nil), ErrClosed)
}

func TestEngineCorruptSegment(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	eng, err := Open(store)
	require.NoError(t, err)
	defer eng.Close()

	writeTrips(t, eng, "trips", 4)
	require.NoError(t, store.Put(ctx, "trips.0000", []byte("not a segment")))

	_, err = eng.OpenTable(ctx, "trips")
	var corrupt *ErrCorruptSegment
	require.ErrorAs(t, err, &corrupt)
	assert.ErrorIs(t, err, blockmanager.ErrIndexLoad)
}

func TestEngineDiskCache(t *testing.T) {
	ctx := context.Background()
	eng, err := Open(Local(t.TempDir()), WithDiskCache(t.TempDir(), 1<<20), WithCacheBytes(0))
	require.NoError(t, err)
	defer eng.Close()

	writeTrips(t, eng, "dir/trips", 9, 9)
	tbl, err := eng.OpenTable(ctx, "dir/trips")
	require.NoError(t, err)
	defer tbl.Close()

	for range 2 {
		rows, err := tbl.ReadRows(5, 15)
		require.NoError(t, err)
		require.Len(t, rows, 10)
		assert.Equal(t, codec.Int(5), rows[0][0])
		assert.Equal(t, codec.Float(7), rows[9][1])
	}
}

func TestEngineLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	eng, err := Open(blobstore.NewMemoryStore(), WithLogger(logger))
	require.NoError(t, err)
	defer eng.Close()

	writeTrips(t, eng, "trips", 3)
	tbl, err := eng.OpenTable(context.Background(), "trips")
	require.NoError(t, err)
	defer tbl.Close()

	g := plan.NewGraph()
	eng.Optimize(context.Background(), g, g.Project(g.Source(tbl), 0, 1))

	out := buf.String()
	assert.Contains(t, out, "table opened")
	assert.Contains(t, out, "plan optimized")
	assert.Contains(t, out, "transform=eliminate-identity-project")
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   error
	}{
		{"segment", fmt.Errorf("open: %w", blockmanager.ErrSegmentNotFound), ErrNotFound},
		{"index", arraygroup.ErrNotFound, ErrNotFound},
		{"blob", blobstore.ErrNotFound, ErrNotFound},
		{"closed", blockmanager.ErrClosed, ErrClosed},
		{"rows", table.ErrRowCountMismatch, ErrRowCountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err)
			assert.ErrorIs(t, err, tt.is)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, translateError(nil))
	other := errors.New("other")
	assert.Same(t, other, translateError(other))

	var corrupt *ErrCorruptSegment
	err := translateError(fmt.Errorf("%w: bad footer", blockmanager.ErrIndexLoad))
	require.ErrorAs(t, err, &corrupt)
	assert.Empty(t, corrupt.Addr)
	assert.ErrorIs(t, err, blockmanager.ErrIndexLoad)
}

func TestEngineScanDefaultsToGOMAXPROCS(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(4))
	assert.Equal(t, int64(4), applyOptions(nil).scanWorkers)

	ctx := context.Background()
	eng, err := Open(blobstore.NewMemoryStore())
	require.NoError(t, err)
	defer eng.Close()

	writeTrips(t, eng, "trips", 40, 40)
	tbl, err := eng.OpenTable(ctx, "trips")
	require.NoError(t, err)
	defer tbl.Close()

	var (
		mu      sync.Mutex
		threads = map[int]bool{}
	)
	err = eng.Scan(ctx, []*table.Table{tbl}, 4, func(thread int, _ uint64, _ [][]codec.Value) error {
		mu.Lock()
		threads[thread] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, threads, 4)
}
