package optimizer

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hupe1980/colframe/plan"
)

// projectInput returns the columns and input of a ProjectNode.
func projectInput(g *plan.Graph, id plan.NodeID) ([]int, plan.NodeID) {
	n := g.Node(id)
	return n.Project(), g.Input(id, 0)
}

func columnSet(cols []int) mapset.Set[int] {
	return mapset.NewThreadUnsafeSet(cols...)
}

// isExpansion reports whether cols repeats a column.
func isExpansion(cols []int) bool {
	return columnSet(cols).Cardinality() < len(cols)
}

// isContraction reports whether cols leaves one of n input columns unused.
func isContraction(cols []int, n int) bool {
	return columnSet(cols).Cardinality() < n
}

// EliminateIdentityProject replaces project(x, 0..n-1) with x.
type EliminateIdentityProject struct{}

func (EliminateIdentityProject) Name() string { return "eliminate-identity-project" }

func (EliminateIdentityProject) NodeTypes() []plan.NodeType {
	return []plan.NodeType{plan.ProjectNode}
}

func (EliminateIdentityProject) Apply(c *Context, id plan.NodeID) (plan.NodeID, bool) {
	cols, in := projectInput(c.Graph, id)
	if !plan.IsIdentity(cols, c.Graph.NumColumns(in)) {
		return 0, false
	}
	return in, true
}

// FoldProjectSource replaces project(source, cols) with a source over the
// selected physical columns when the projection is no wider than the source.
type FoldProjectSource struct{}

func (FoldProjectSource) Name() string { return "fold-project-source" }

func (FoldProjectSource) NodeTypes() []plan.NodeType {
	return []plan.NodeType{plan.ProjectNode}
}

func (FoldProjectSource) Apply(c *Context, id plan.NodeID) (plan.NodeID, bool) {
	cols, in := projectInput(c.Graph, id)
	src, ok := c.Info.PhysicalSource(in)
	if !ok || len(cols) > src.NumColumns() {
		return 0, false
	}
	return c.Graph.Source(src.SelectColumns(cols)), true
}

// FuseProjects composes project(project(x, inner), outer) into
// project(x, inner[outer[i]]). It leaves a contraction under an expansion
// alone; that shape is what SplitProject produces.
type FuseProjects struct{}

func (FuseProjects) Name() string { return "fuse-projects" }

func (FuseProjects) NodeTypes() []plan.NodeType {
	return []plan.NodeType{plan.ProjectNode}
}

func (FuseProjects) Apply(c *Context, id plan.NodeID) (plan.NodeID, bool) {
	g := c.Graph
	outer, in := projectInput(g, id)
	if g.Type(in) != plan.ProjectNode {
		return 0, false
	}
	inner, x := projectInput(g, in)
	if isContraction(inner, g.NumColumns(x)) && isExpansion(outer) {
		return 0, false
	}

	cols := make([]int, len(outer))
	for i, o := range outer {
		cols[i] = inner[o]
	}
	return g.Project(x, cols...), true
}

// SplitProject factors a projection that both drops and duplicates columns
// into project(project(x, contract), expand). contract keeps the used
// columns in input order so it can fold toward the source on its own.
type SplitProject struct{}

func (SplitProject) Name() string { return "split-project" }

func (SplitProject) NodeTypes() []plan.NodeType {
	return []plan.NodeType{plan.ProjectNode}
}

func (SplitProject) Apply(c *Context, id plan.NodeID) (plan.NodeID, bool) {
	g := c.Graph
	cols, in := projectInput(g, id)
	if !isContraction(cols, g.NumColumns(in)) || !isExpansion(cols) {
		return 0, false
	}

	contract := columnSet(cols).ToSlice()
	slices.Sort(contract)
	pos := make(map[int]int, len(contract))
	for i, col := range contract {
		pos[col] = i
	}
	expand := make([]int, len(cols))
	for i, col := range cols {
		expand[i] = pos[col]
	}
	return g.Project(g.Project(in, contract...), expand...), true
}
