package plan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/maphash"
	"slices"
	"strings"
)

var (
	// ErrInvalidParams is returned by Add for parameters that do not fit the inputs.
	ErrInvalidParams = errors.New("plan: invalid parameters")
	// ErrArity is returned by Add for a wrong number of inputs.
	ErrArity = errors.New("plan: wrong number of inputs")
	// ErrUnknownNode is returned by Add for inputs that are not in the graph.
	ErrUnknownNode = errors.New("plan: unknown node")
)

// Graph is an arena of plan nodes. It is not safe for concurrent mutation;
// a graph that is no longer rewritten may be read concurrently.
type Graph struct {
	nodes    []Node   // nodes[0] is unused
	redirect []NodeID // redirect[id] != 0 once id was replaced
	seed     maphash.Seed
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make([]Node, 1),
		redirect: make([]NodeID, 1),
		seed:     maphash.MakeSeed(),
	}
}

// Len returns the number of nodes ever added, replaced ones included.
func (g *Graph) Len() int { return len(g.nodes) - 1 }

// Contains reports whether id names a node of g.
func (g *Graph) Contains(id NodeID) bool {
	return id != 0 && int(id) < len(g.nodes)
}

func (g *Graph) check(id NodeID) {
	if !g.Contains(id) {
		panic(fmt.Sprintf("plan: unknown node %d", id))
	}
}

// Add validates p against the inputs and appends a node.
func (g *Graph) Add(p Params, inputs ...NodeID) (NodeID, error) {
	if p == nil {
		return 0, fmt.Errorf("%w: nil params", ErrInvalidParams)
	}
	resolved := make([]NodeID, len(inputs))
	for i, in := range inputs {
		if !g.Contains(in) {
			return 0, fmt.Errorf("plan: add %s: %w: %d", p.Type(), ErrUnknownNode, in)
		}
		resolved[i] = g.Resolve(in)
	}

	n, err := p.validate(g, resolved)
	if err != nil {
		return 0, fmt.Errorf("plan: add %s: %w", p.Type(), err)
	}
	if pp, ok := p.(ProjectParams); ok {
		pp.Columns = slices.Clone(pp.Columns)
		p = pp
	}

	g.nodes = append(g.nodes, Node{Type: p.Type(), Params: p, Inputs: resolved, numColumns: n})
	g.redirect = append(g.redirect, 0)
	return NodeID(len(g.nodes) - 1), nil
}

// MustAdd is like Add but panics on error.
func (g *Graph) MustAdd(p Params, inputs ...NodeID) NodeID {
	id, err := g.Add(p, inputs...)
	if err != nil {
		panic(err)
	}
	return id
}

// Source adds a source node. It panics on invalid input, as do the other
// builder helpers.
func (g *Graph) Source(src Source) NodeID {
	return g.MustAdd(SourceParams{Source: src})
}

// Range adds a row range over in.
func (g *Graph) Range(in NodeID, start, end uint64) NodeID {
	return g.MustAdd(RangeParams{Start: start, End: end}, in)
}

// Project adds a projection of in.
func (g *Graph) Project(in NodeID, cols ...int) NodeID {
	return g.MustAdd(ProjectParams{Columns: cols}, in)
}

// Union adds a column-wise concatenation of inputs.
func (g *Graph) Union(inputs ...NodeID) NodeID {
	return g.MustAdd(UnionParams{}, inputs...)
}

// Append adds a row-wise concatenation of inputs.
func (g *Graph) Append(inputs ...NodeID) NodeID {
	return g.MustAdd(AppendParams{}, inputs...)
}

// Filter adds a row filter of data by a one-column mask.
func (g *Graph) Filter(data, mask NodeID) NodeID {
	return g.MustAdd(FilterParams{}, data, mask)
}

// Transform adds an opaque row map over in.
func (g *Graph) Transform(in NodeID, p TransformParams) NodeID {
	return g.MustAdd(p, in)
}

// Resolve follows redirects from id to the node currently standing for it.
func (g *Graph) Resolve(id NodeID) NodeID {
	g.check(id)
	root := id
	for g.redirect[root] != 0 {
		root = g.redirect[root]
	}
	for id != root {
		next := g.redirect[id]
		g.redirect[id] = root
		id = next
	}
	return root
}

// Replaced reports whether id has been replaced.
func (g *Graph) Replaced(id NodeID) bool {
	g.check(id)
	return g.redirect[id] != 0
}

// Node returns the node standing for id. Its slices must not be modified.
func (g *Graph) Node(id NodeID) Node {
	return g.nodes[g.Resolve(id)]
}

// Type returns the type of the node standing for id.
func (g *Graph) Type(id NodeID) NodeType {
	return g.nodes[g.Resolve(id)].Type
}

// NumColumns returns the output column count of id.
func (g *Graph) NumColumns(id NodeID) int {
	return g.nodes[g.Resolve(id)].numColumns
}

// Inputs returns the resolved inputs of id.
func (g *Graph) Inputs(id NodeID) []NodeID {
	n := &g.nodes[g.Resolve(id)]
	out := make([]NodeID, len(n.Inputs))
	for i, in := range n.Inputs {
		out[i] = g.Resolve(in)
	}
	return out
}

// Input returns the i-th resolved input of id.
func (g *Graph) Input(id NodeID, i int) NodeID {
	return g.Resolve(g.nodes[g.Resolve(id)].Inputs[i])
}

// Replace makes every reference to old refer to replacement. Both must have
// the same column count, and replacement must not reach old; violating either
// panics.
func (g *Graph) Replace(old, replacement NodeID) {
	old, replacement = g.Resolve(old), g.Resolve(replacement)
	if old == replacement {
		return
	}
	if a, b := g.nodes[old].numColumns, g.nodes[replacement].numColumns; a != b {
		panic(fmt.Sprintf("plan: replacing %d (%d columns) with %d (%d columns)", old, a, replacement, b))
	}
	if g.reaches(replacement, old) {
		panic(fmt.Sprintf("plan: replacing %d with %d would create a cycle", old, replacement))
	}
	g.redirect[old] = replacement
}

func (g *Graph) reaches(from, target NodeID) bool {
	seen := make(map[NodeID]bool)
	stack := []NodeID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, in := range g.nodes[id].Inputs {
			stack = append(stack, g.Resolve(in))
		}
	}
	return false
}

// Reachable returns the nodes reachable from root in topological order,
// parents before their inputs.
func (g *Graph) Reachable(root NodeID) []NodeID {
	var post []NodeID
	seen := make(map[NodeID]bool)
	var visit func(NodeID)
	visit = func(id NodeID) {
		id = g.Resolve(id)
		if seen[id] {
			return
		}
		seen[id] = true
		for _, in := range g.nodes[id].Inputs {
			visit(in)
		}
		post = append(post, id)
	}
	visit(root)
	slices.Reverse(post)
	return post
}

// Fingerprint hashes the plan structure under root. Sources and transforms
// hash by identity.
func (g *Graph) Fingerprint(root NodeID) uint64 {
	memo := make(map[NodeID]uint64)
	var fp func(NodeID) uint64
	fp = func(id NodeID) uint64 {
		id = g.Resolve(id)
		if v, ok := memo[id]; ok {
			return v
		}
		n := &g.nodes[id]

		var h maphash.Hash
		h.SetSeed(g.seed)
		var buf [8]byte
		put := func(v uint64) {
			binary.LittleEndian.PutUint64(buf[:], v)
			_, _ = h.Write(buf[:])
		}
		_ = h.WriteByte(byte(n.Type))
		switch p := n.Params.(type) {
		case SourceParams, TransformParams:
			put(uint64(id))
		case ProjectParams:
			put(uint64(len(p.Columns)))
			for _, c := range p.Columns {
				put(uint64(c))
			}
		case RangeParams:
			put(p.Start)
			put(p.End)
		}
		put(uint64(len(n.Inputs)))
		for _, in := range n.Inputs {
			put(fp(in))
		}

		v := h.Sum64()
		memo[id] = v
		return v
	}
	return fp(root)
}

// Format renders the plan under root as an indented tree. Shared nodes are
// printed once and referenced by id afterwards.
func (g *Graph) Format(root NodeID) string {
	var sb strings.Builder
	printed := make(map[NodeID]bool)
	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		id = g.Resolve(id)
		n := &g.nodes[id]
		sb.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&sb, "#%d %s", id, n.Type)
		if printed[id] {
			sb.WriteString(" ^\n")
			return
		}
		printed[id] = true
		if d := n.Params.describe(); d != "" {
			sb.WriteByte(' ')
			sb.WriteString(d)
		}
		sb.WriteByte('\n')
		for _, in := range n.Inputs {
			walk(in, depth+1)
		}
	}
	walk(root, 0)
	return sb.String()
}
