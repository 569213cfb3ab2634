package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/colframe/arraygroup"
	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/blockmanager"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/conv"
	"github.com/hupe1980/colframe/plan"
)

// Table is an ordered list of columns with a common row count.
// A Table returned by Open owns its columns; tables derived with Select
// share them and have no-op Close.
type Table struct {
	columns []*Column
	rows    uint64
	owned   bool
}

// Open opens every column of the named array groups, concatenated in order.
func Open(ctx context.Context, mgr *blockmanager.Manager, store blobstore.BlobStore, indexNames ...string) (*Table, error) {
	var cols []*Column
	closeAll := func() {
		for _, c := range cols {
			_ = c.Close()
		}
	}

	for _, name := range indexNames {
		idx, err := arraygroup.Load(ctx, store, name)
		if err != nil {
			closeAll()
			return nil, err
		}
		for c := 0; c < idx.NumColumns(); c++ {
			col, err := OpenColumn(mgr, idx, c)
			if err != nil {
				closeAll()
				return nil, err
			}
			cols = append(cols, col)
		}
	}

	t, err := New(cols...)
	if err != nil {
		closeAll()
		return nil, err
	}
	t.owned = true
	return t, nil
}

// New builds a table from columns of equal length. The table does not own
// the columns.
func New(columns ...*Column) (*Table, error) {
	t := &Table{columns: columns}
	for i, c := range columns {
		if i == 0 {
			t.rows = c.NumRows()
			continue
		}
		if c.NumRows() != t.rows {
			return nil, fmt.Errorf("%w: column %s has %d rows, want %d", ErrRowCountMismatch, c.Name(), c.NumRows(), t.rows)
		}
	}
	return t, nil
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// NumRows returns the number of rows.
func (t *Table) NumRows() uint64 { return t.rows }

// Column returns column i.
func (t *Table) Column(i int) *Column { return t.columns[i] }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name()
	}
	return names
}

// Kinds returns the column kinds in order.
func (t *Table) Kinds() []codec.Kind {
	kinds := make([]codec.Kind, len(t.columns))
	for i, c := range t.columns {
		kinds[i] = c.Kind()
	}
	return kinds
}

// Select returns a table of the given columns in order. Indices may repeat.
// It panics on an out-of-range index.
func (t *Table) Select(cols []int) *Table {
	out := &Table{columns: make([]*Column, len(cols)), rows: t.rows}
	for i, c := range cols {
		out.columns[i] = t.columns[c]
	}
	return out
}

// SelectColumns implements plan.Source.
func (t *Table) SelectColumns(cols []int) plan.Source {
	return t.Select(cols)
}

// ReadColumns returns rows [start, end) column-major.
func (t *Table) ReadColumns(start, end uint64) ([][]codec.Value, error) {
	out := make([][]codec.Value, len(t.columns))
	for i, c := range t.columns {
		vals, err := c.Read(start, end)
		if err != nil {
			return nil, err
		}
		out[i] = vals
	}
	return out, nil
}

// ReadRows returns rows [start, end) row-major.
func (t *Table) ReadRows(start, end uint64) ([][]codec.Value, error) {
	cols, err := t.ReadColumns(start, end)
	if err != nil {
		return nil, err
	}
	n, err := conv.Uint64ToInt(end - start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	return transpose(cols, n), nil
}

// ScanSelected calls fn for every selected row in ascending order. Blocks
// without selected rows are skipped.
func (t *Table) ScanSelected(sel *roaring.Bitmap, fn func(row uint64, values []codec.Value) error) error {
	cols := make([][]codec.Value, len(t.columns))
	for i, c := range t.columns {
		vals, err := c.ReadSelected(sel)
		if err != nil {
			return err
		}
		cols[i] = vals
	}

	it := sel.Iterator()
	for r := 0; it.HasNext(); r++ {
		row := make([]codec.Value, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		if err := fn(uint64(it.Next()), row); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the columns of a table returned by Open.
func (t *Table) Close() error {
	if !t.owned {
		return nil
	}
	t.owned = false
	var errs []error
	for _, c := range t.columns {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func transpose(cols [][]codec.Value, rows int) [][]codec.Value {
	out := make([][]codec.Value, rows)
	backing := make([]codec.Value, rows*len(cols))
	for r := range out {
		row := backing[r*len(cols) : (r+1)*len(cols) : (r+1)*len(cols)]
		for c := range cols {
			row[c] = cols[c][r]
		}
		out[r] = row
	}
	return out
}
