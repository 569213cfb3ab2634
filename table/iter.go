package table

import (
	"fmt"
	"iter"

	"github.com/hupe1980/colframe/codec"
)

// DefaultBatchRows is the default batch size of Rows and scans.
const DefaultBatchRows = 1024

// Rows iterates rows [start, end) in row-major batches of at most batch rows.
// Iteration stops after the first error.
//
//	for rows, err := range t.Rows(0, t.NumRows(), 256) {
//	    if err != nil { return err }
//	    process(rows)
//	}
func (t *Table) Rows(start, end uint64, batch int) iter.Seq2[[][]codec.Value, error] {
	if batch <= 0 {
		batch = DefaultBatchRows
	}
	return func(yield func([][]codec.Value, error) bool) {
		if start > end || end > t.rows {
			yield(nil, fmt.Errorf("%w: [%d, %d) of %d rows", ErrOutOfRange, start, end, t.rows))
			return
		}
		for lo := start; lo < end; lo += uint64(batch) {
			hi := min(lo+uint64(batch), end)
			rows, err := t.ReadRows(lo, hi)
			if !yield(rows, err) || err != nil {
				return
			}
		}
	}
}
