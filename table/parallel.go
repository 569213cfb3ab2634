package table

import (
	"context"
	"fmt"
	"runtime"

	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/resource"
	"golang.org/x/sync/errgroup"
)

// ParallelFor runs fn(thread, threads) for every thread in [0, threads) and
// waits for all of them.
type ParallelFor func(threads int, fn func(thread, threads int) error) error

// ErrgroupParallelFor is the default ParallelFor: one goroutine per thread,
// returning the first error.
func ErrgroupParallelFor(threads int, fn func(thread, threads int) error) error {
	var g errgroup.Group
	for i := 0; i < threads; i++ {
		g.Go(func() error { return fn(i, threads) })
	}
	return g.Wait()
}

// RowFunc receives one row of every scanned table; values[i] belongs to
// tables[i]. It is called concurrently from different threads.
type RowFunc func(thread int, row uint64, values [][]codec.Value) error

// ScanOption configures ScanParallel.
type ScanOption func(*scanOptions)

type scanOptions struct {
	batchRows int
	rc        *resource.Controller
}

// WithBatchRows sets the rows read per column per step. Default: 1024.
func WithBatchRows(n int) ScanOption {
	return func(o *scanOptions) { o.batchRows = n }
}

// WithResourceController bounds the workers by the controller's scan slots.
func WithResourceController(rc *resource.Controller) ScanOption {
	return func(o *scanOptions) { o.rc = rc }
}

// Partition returns the half-open row range of thread among threads over n rows.
func Partition(n uint64, thread, threads int) (start, end uint64) {
	return n * uint64(thread) / uint64(threads), n * uint64(thread+1) / uint64(threads)
}

// ScanParallel splits [0, rows) into threads contiguous ranges and iterates
// all tables in lockstep, one range per thread. All tables must have the
// same row count. threads <= 0 means GOMAXPROCS; a nil pf means
// ErrgroupParallelFor.
func ScanParallel(ctx context.Context, tables []*Table, threads int, pf ParallelFor, fn RowFunc, optFns ...ScanOption) error {
	if len(tables) == 0 {
		return nil
	}
	opts := scanOptions{batchRows: DefaultBatchRows}
	for _, o := range optFns {
		o(&opts)
	}
	if opts.batchRows <= 0 {
		opts.batchRows = DefaultBatchRows
	}

	n := tables[0].NumRows()
	for i, t := range tables[1:] {
		if t.NumRows() != n {
			return fmt.Errorf("%w: table %d has %d rows, table 0 has %d", ErrRowCountMismatch, i+1, t.NumRows(), n)
		}
	}

	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	if slots := opts.rc.ScanSlots(); slots > 0 {
		threads = min(threads, slots)
	}
	if pf == nil {
		pf = ErrgroupParallelFor
	}

	return pf(threads, func(thread, threads int) error {
		if err := opts.rc.AcquireScan(ctx); err != nil {
			return err
		}
		defer opts.rc.ReleaseScan()

		start, end := Partition(n, thread, threads)
		return scanRange(ctx, tables, thread, start, end, opts.batchRows, fn)
	})
}

func scanRange(ctx context.Context, tables []*Table, thread int, start, end uint64, batch int, fn RowFunc) error {
	batches := make([][][]codec.Value, len(tables))
	values := make([][]codec.Value, len(tables))

	for lo := start; lo < end; lo += uint64(batch) {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+uint64(batch), end)
		for i, t := range tables {
			rows, err := t.ReadRows(lo, hi)
			if err != nil {
				return err
			}
			batches[i] = rows
		}
		for r := range int(hi - lo) {
			for i := range tables {
				values[i] = batches[i][r]
			}
			if err := fn(thread, lo+uint64(r), values); err != nil {
				return err
			}
		}
	}
	return nil
}
