package optimizer

import (
	"github.com/hupe1980/colframe/plan"
)

// FlattenUnion splices nested unions into their parent:
// union(union(a, b), c) becomes union(a, b, c).
type FlattenUnion struct{}

func (FlattenUnion) Name() string { return "flatten-union" }

func (FlattenUnion) NodeTypes() []plan.NodeType {
	return []plan.NodeType{plan.UnionNode}
}

func (FlattenUnion) Apply(c *Context, id plan.NodeID) (plan.NodeID, bool) {
	g := c.Graph
	inputs := g.Inputs(id)
	nested := false
	for _, in := range inputs {
		if g.Type(in) == plan.UnionNode {
			nested = true
			break
		}
	}
	if !nested {
		return 0, false
	}

	var flat []plan.NodeID
	for _, in := range inputs {
		if g.Type(in) == plan.UnionNode {
			flat = append(flat, g.Inputs(in)...)
		} else {
			flat = append(flat, in)
		}
	}
	return g.Union(flat...), true
}

// NarrowUnion pushes a projection that leaves union columns unused into the
// union. Each input keeps only its referenced columns, in order; inputs
// without referenced columns are dropped and a single remaining input
// replaces the union. The outer projection is remapped onto the narrower
// union, so output column order is unchanged.
type NarrowUnion struct{}

func (NarrowUnion) Name() string { return "narrow-union" }

func (NarrowUnion) NodeTypes() []plan.NodeType {
	return []plan.NodeType{plan.ProjectNode}
}

func (NarrowUnion) Apply(c *Context, id plan.NodeID) (plan.NodeID, bool) {
	g := c.Graph
	cols, u := projectInput(g, id)
	if g.Type(u) != plan.UnionNode || len(cols) == 0 {
		return 0, false
	}
	used := columnSet(cols)
	if used.Cardinality() == g.NumColumns(u) {
		return 0, false
	}

	type narrowed struct {
		in   plan.NodeID
		keep []int
		all  bool
	}
	var kept []narrowed
	remap := make([]int, g.NumColumns(u))
	offset, next := 0, 0
	for _, in := range g.Inputs(u) {
		width := g.NumColumns(in)
		var keep []int
		for local := 0; local < width; local++ {
			if used.Contains(offset + local) {
				remap[offset+local] = next
				next++
				keep = append(keep, local)
			}
		}
		offset += width
		if len(keep) > 0 {
			kept = append(kept, narrowed{in: in, keep: keep, all: len(keep) == width})
		}
	}

	inputs := make([]plan.NodeID, len(kept))
	for i, k := range kept {
		if k.all {
			inputs[i] = k.in
		} else {
			inputs[i] = g.Project(k.in, k.keep...)
		}
	}
	body := inputs[0]
	if len(inputs) > 1 {
		body = g.Union(inputs...)
	}

	out := make([]int, len(cols))
	for i, col := range cols {
		out[i] = remap[col]
	}
	return g.Project(body, out...), true
}
