package optimizer

import (
	"github.com/hupe1980/colframe/plan"
)

// PushProjectAppend moves a non-expanding projection below a row-wise
// append: project(append(a, b), cols) becomes
// append(project(a, cols), project(b, cols)).
type PushProjectAppend struct{}

func (PushProjectAppend) Name() string { return "push-project-append" }

func (PushProjectAppend) NodeTypes() []plan.NodeType {
	return []plan.NodeType{plan.ProjectNode}
}

func (PushProjectAppend) Apply(c *Context, id plan.NodeID) (plan.NodeID, bool) {
	g := c.Graph
	cols, app := projectInput(g, id)
	if g.Type(app) != plan.AppendNode || isExpansion(cols) {
		return 0, false
	}

	inputs := g.Inputs(app)
	projected := make([]plan.NodeID, len(inputs))
	for i, in := range inputs {
		projected[i] = g.Project(in, cols...)
	}
	return g.Append(projected...), true
}

// PushProjectFilter moves a projection below a row filter:
// project(filter(a, mask), cols) becomes filter(project(a, cols), mask).
type PushProjectFilter struct{}

func (PushProjectFilter) Name() string { return "push-project-filter" }

func (PushProjectFilter) NodeTypes() []plan.NodeType {
	return []plan.NodeType{plan.ProjectNode}
}

func (PushProjectFilter) Apply(c *Context, id plan.NodeID) (plan.NodeID, bool) {
	g := c.Graph
	cols, f := projectInput(g, id)
	if g.Type(f) != plan.FilterNode {
		return 0, false
	}
	data, mask := g.Input(f, 0), g.Input(f, 1)
	return g.Filter(g.Project(data, cols...), mask), true
}
