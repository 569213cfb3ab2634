package table

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/colframe/arraygroup"
	"github.com/hupe1980/colframe/blockmanager"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/internal/conv"
)

var (
	// ErrOutOfRange is returned for row ranges or selections past the end.
	ErrOutOfRange = errors.New("table: row out of range")
	// ErrRowCountMismatch is returned when columns or tables differ in rows.
	ErrRowCountMismatch = errors.New("table: row count mismatch")
)

// columnPart is the piece of a column stored in one segment.
type columnPart struct {
	addr  blockmanager.ColumnAddress
	first uint64   // global row of the part's first row
	ends  []uint64 // ends[i] is the part-local row one past block i
}

func (p *columnPart) rows() uint64 {
	if len(p.ends) == 0 {
		return 0
	}
	return p.ends[len(p.ends)-1]
}

func (p *columnPart) blockStart(b int) uint64 {
	if b == 0 {
		return 0
	}
	return p.ends[b-1]
}

// Column reads one logical column of an array group.
type Column struct {
	mgr   *blockmanager.Manager
	name  string
	kind  codec.Kind
	parts []columnPart
	rows  uint64
}

// OpenColumn opens column col of idx across all of its segments.
func OpenColumn(mgr *blockmanager.Manager, idx *arraygroup.Index, col int) (*Column, error) {
	if col < 0 || col >= idx.NumColumns() {
		return nil, fmt.Errorf("%w: column %d of %d", blockmanager.ErrOutOfRange, col, idx.NumColumns())
	}
	meta := idx.Columns[col]
	c := &Column{
		mgr:   mgr,
		name:  meta.Name,
		kind:  meta.Kind,
		parts: make([]columnPart, 0, idx.NumSegments()),
	}

	for seg := 0; seg < idx.NumSegments(); seg++ {
		addr, err := mgr.OpenColumn(idx.ColumnSpec(col, seg))
		if err != nil {
			c.Close()
			return nil, err
		}
		infos, _ := mgr.AllBlockInfo(addr)
		part := columnPart{addr: addr, first: c.rows, ends: make([]uint64, len(infos))}
		var n uint64
		for i, info := range infos {
			n += uint64(info.RowCount)
			part.ends[i] = n
		}
		c.parts = append(c.parts, part)

		if want := meta.SegmentRows[seg]; n != want {
			c.Close()
			return nil, fmt.Errorf("%w: column %s segment %d holds %d rows, index says %d",
				arraygroup.ErrRowCountMismatch, meta.Name, seg, n, want)
		}
		c.rows += n
	}
	return c, nil
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the declared value kind.
func (c *Column) Kind() codec.Kind { return c.kind }

// NumRows returns the number of rows.
func (c *Column) NumRows() uint64 { return c.rows }

// NumBlocks returns the number of blocks across all segments.
func (c *Column) NumBlocks() int {
	n := 0
	for i := range c.parts {
		n += len(c.parts[i].ends)
	}
	return n
}

// Read returns rows [start, end).
func (c *Column) Read(start, end uint64) ([]codec.Value, error) {
	if start > end || end > c.rows {
		return nil, fmt.Errorf("%w: [%d, %d) of %d rows", ErrOutOfRange, start, end, c.rows)
	}
	out := make([]codec.Value, 0, end-start)
	if start == end {
		return out, nil
	}

	pi := sort.Search(len(c.parts), func(i int) bool {
		return c.parts[i].first+c.parts[i].rows() > start
	})
	row := start
	for ; pi < len(c.parts) && row < end; pi++ {
		p := &c.parts[pi]
		local := row - p.first
		stop := min(end-p.first, p.rows())
		b := sort.Search(len(p.ends), func(i int) bool { return p.ends[i] > local })
		for ; b < len(p.ends) && local < stop; b++ {
			vals, err := c.mgr.ReadTypedBlock(p.addr.Block(b))
			if err != nil {
				return nil, err
			}
			bs := p.blockStart(b)
			hi := min(p.ends[b], stop)
			out = append(out, vals[local-bs:hi-bs]...)
			local = hi
		}
		row = p.first + local
	}
	return out, nil
}

// ReadSelected returns the values of the selected rows in ascending row
// order. Blocks without selected rows are not read.
func (c *Column) ReadSelected(sel *roaring.Bitmap) ([]codec.Value, error) {
	out := make([]codec.Value, 0, sel.GetCardinality())
	it := sel.Iterator()

	for pi := range c.parts {
		p := &c.parts[pi]
		for b := range p.ends {
			bs := p.first + p.blockStart(b)
			be := p.first + p.ends[b]
			start, err := conv.Uint64ToUint32(bs)
			if err != nil || !it.HasNext() {
				break
			}
			it.AdvanceIfNeeded(start)
			if !it.HasNext() || uint64(it.PeekNext()) >= be {
				continue
			}

			vals, err := c.mgr.ReadTypedBlock(p.addr.Block(b))
			if err != nil {
				return nil, err
			}
			for it.HasNext() && uint64(it.PeekNext()) < be {
				out = append(out, vals[uint64(it.Next())-bs])
			}
		}
	}
	if it.HasNext() {
		return nil, fmt.Errorf("%w: row %d of %d rows", ErrOutOfRange, it.PeekNext(), c.rows)
	}
	return out, nil
}

// Close releases the column's segment references.
func (c *Column) Close() error {
	var errs []error
	for _, p := range c.parts {
		errs = append(errs, c.mgr.CloseColumn(p.addr))
	}
	c.parts = nil
	return errors.Join(errs...)
}
