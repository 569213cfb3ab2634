package testutil

import (
	"fmt"

	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/plan"
)

// MemSource is an in-memory plan.Source holding column-major values.
type MemSource struct {
	names []string
	cols  [][]codec.Value
	rows  uint64
}

// NewMemSource creates a source from named columns of equal length.
func NewMemSource(names []string, cols ...[]codec.Value) *MemSource {
	if len(names) != len(cols) {
		panic(fmt.Sprintf("testutil: %d names for %d columns", len(names), len(cols)))
	}
	s := &MemSource{names: names, cols: cols}
	for i, c := range cols {
		if i == 0 {
			s.rows = uint64(len(c))
		} else if uint64(len(c)) != s.rows {
			panic(fmt.Sprintf("testutil: column %s has %d rows, want %d", names[i], len(c), s.rows))
		}
	}
	return s
}

// RandomSource creates a source of width int columns with rows random values.
func RandomSource(rng *RNG, width, rows int) *MemSource {
	names := make([]string, width)
	cols := make([][]codec.Value, width)
	for i := range cols {
		names[i] = fmt.Sprintf("c%d", i)
		cols[i] = rng.Ints(rows, 0, 1000)
	}
	return NewMemSource(names, cols...)
}

func (s *MemSource) NumColumns() int       { return len(s.cols) }
func (s *MemSource) NumRows() uint64       { return s.rows }
func (s *MemSource) ColumnNames() []string { return s.names }

// Column returns the values of column i.
func (s *MemSource) Column(i int) []codec.Value { return s.cols[i] }

// SelectColumns returns a source sharing the selected columns.
func (s *MemSource) SelectColumns(cols []int) plan.Source {
	out := &MemSource{
		names: make([]string, len(cols)),
		cols:  make([][]codec.Value, len(cols)),
		rows:  s.rows,
	}
	for i, c := range cols {
		out.names[i] = s.names[c]
		out.cols[i] = s.cols[c]
	}
	return out
}

// Rows returns the source row-major.
func (s *MemSource) Rows() [][]codec.Value {
	out := make([][]codec.Value, s.rows)
	for r := range out {
		row := make([]codec.Value, len(s.cols))
		for c := range s.cols {
			row[c] = s.cols[c][r]
		}
		out[r] = row
	}
	return out
}

// Evaluate materializes the plan under root row-major. Every source must be
// a *MemSource.
func Evaluate(g *plan.Graph, root plan.NodeID) ([][]codec.Value, error) {
	memo := make(map[plan.NodeID][][]codec.Value)
	var eval func(plan.NodeID) ([][]codec.Value, error)
	eval = func(id plan.NodeID) ([][]codec.Value, error) {
		id = g.Resolve(id)
		if rows, ok := memo[id]; ok {
			return rows, nil
		}

		n := g.Node(id)
		inputs := make([][][]codec.Value, 0, len(n.Inputs))
		for _, in := range g.Inputs(id) {
			rows, err := eval(in)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, rows)
		}

		var out [][]codec.Value
		switch p := n.Params.(type) {
		case plan.SourceParams:
			ms, ok := p.Source.(*MemSource)
			if !ok {
				return nil, fmt.Errorf("testutil: cannot evaluate source %T", p.Source)
			}
			out = ms.Rows()
		case plan.RangeParams:
			rows := inputs[0]
			end := min(p.End, uint64(len(rows)))
			start := min(p.Start, end)
			out = rows[start:end]
		case plan.ProjectParams:
			for _, row := range inputs[0] {
				r := make([]codec.Value, len(p.Columns))
				for i, c := range p.Columns {
					r[i] = row[c]
				}
				out = append(out, r)
			}
		case plan.UnionParams:
			for _, in := range inputs[1:] {
				if len(in) != len(inputs[0]) {
					return nil, fmt.Errorf("testutil: union of %d and %d rows", len(inputs[0]), len(in))
				}
			}
			for r := range inputs[0] {
				var row []codec.Value
				for _, in := range inputs {
					row = append(row, in[r]...)
				}
				out = append(out, row)
			}
		case plan.AppendParams:
			for _, in := range inputs {
				out = append(out, in...)
			}
		case plan.FilterParams:
			data, mask := inputs[0], inputs[1]
			if len(data) != len(mask) {
				return nil, fmt.Errorf("testutil: filter of %d rows by %d mask rows", len(data), len(mask))
			}
			for r, row := range data {
				if mask[r][0].Truthy() {
					out = append(out, row)
				}
			}
		case plan.TransformParams:
			for _, row := range inputs[0] {
				r, err := p.Fn(row)
				if err != nil {
					return nil, err
				}
				out = append(out, r)
			}
		default:
			return nil, fmt.Errorf("testutil: cannot evaluate %s", n.Type)
		}

		memo[id] = out
		return out, nil
	}
	return eval(root)
}
