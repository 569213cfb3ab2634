package plan

// Info caches derived node properties for one optimization pass.
type Info struct {
	g       *Graph
	root    NodeID
	parents map[NodeID][]NodeID
}

// NewInfo creates an Info for the plan under root.
func NewInfo(g *Graph, root NodeID) *Info {
	return &Info{g: g, root: root}
}

// Graph returns the graph.
func (in *Info) Graph() *Graph { return in.g }

// Root returns the current root.
func (in *Info) Root() NodeID { return in.g.Resolve(in.root) }

// NumColumns returns the output column count of id.
func (in *Info) NumColumns(id NodeID) int { return in.g.NumColumns(id) }

// PhysicalSource returns the source of id when it is a SourceNode.
func (in *Info) PhysicalSource(id NodeID) (Source, bool) {
	n := in.g.Node(id)
	if p, ok := n.Params.(SourceParams); ok {
		return p.Source, true
	}
	return nil, false
}

// Parents returns the distinct nodes reachable from the root that take id as
// an input.
func (in *Info) Parents(id NodeID) []NodeID {
	if in.parents == nil {
		in.parents = make(map[NodeID][]NodeID)
		for _, p := range in.g.Reachable(in.root) {
			for _, c := range in.g.Inputs(p) {
				in.parents[c] = appendUnique(in.parents[c], p)
			}
		}
	}
	return in.parents[in.g.Resolve(id)]
}

// Invalidate drops cached properties after the graph was rewritten.
func (in *Info) Invalidate() {
	in.parents = nil
}

func appendUnique(ids []NodeID, id NodeID) []NodeID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}
