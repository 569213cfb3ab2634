package plan

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/colframe/codec"
)

// NodeID addresses a node in a Graph. The zero NodeID is never a node.
type NodeID uint32

// NodeType tags the operator of a node.
type NodeType uint8

const (
	// SourceNode reads a physical source.
	SourceNode NodeType = iota + 1
	// RangeNode keeps rows [Start, End) of its input.
	RangeNode
	// ProjectNode selects, reorders or duplicates columns of its input.
	ProjectNode
	// UnionNode concatenates the columns of its inputs in order.
	UnionNode
	// AppendNode concatenates the rows of inputs with equal column counts.
	AppendNode
	// FilterNode keeps the rows of its first input where the one-column
	// second input is truthy.
	FilterNode
	// TransformNode maps every row of its input through an opaque function.
	TransformNode
)

func (t NodeType) String() string {
	switch t {
	case SourceNode:
		return "source"
	case RangeNode:
		return "range"
	case ProjectNode:
		return "project"
	case UnionNode:
		return "union"
	case AppendNode:
		return "append"
	case FilterNode:
		return "filter"
	case TransformNode:
		return "transform"
	default:
		return "node(" + strconv.Itoa(int(t)) + ")"
	}
}

// Source is a physical, column-addressable data source.
type Source interface {
	NumColumns() int
	NumRows() uint64
	ColumnNames() []string
	// SelectColumns returns a source exposing the given columns in order.
	// Indices may repeat.
	SelectColumns(cols []int) Source
}

// Params is the parameter set of a node. The concrete type determines the
// node type.
type Params interface {
	Type() NodeType
	// validate checks the parameters against the resolved inputs and returns
	// the node's column count.
	validate(g *Graph, inputs []NodeID) (int, error)
	describe() string
}

// SourceParams embeds a physical source.
type SourceParams struct {
	Source Source
}

// RangeParams bounds the rows of a RangeNode.
type RangeParams struct {
	Start, End uint64
}

// ProjectParams lists the input columns a ProjectNode outputs.
type ProjectParams struct {
	Columns []int
}

// UnionParams parameterizes a UnionNode. It has no fields.
type UnionParams struct{}

// AppendParams parameterizes an AppendNode. It has no fields.
type AppendParams struct{}

// FilterParams parameterizes a FilterNode. It has no fields.
type FilterParams struct{}

// TransformParams describes an opaque row map.
type TransformParams struct {
	Name       string
	NumColumns int
	Fn         func(row []codec.Value) ([]codec.Value, error)
}

func (SourceParams) Type() NodeType    { return SourceNode }
func (RangeParams) Type() NodeType     { return RangeNode }
func (ProjectParams) Type() NodeType   { return ProjectNode }
func (UnionParams) Type() NodeType     { return UnionNode }
func (AppendParams) Type() NodeType    { return AppendNode }
func (FilterParams) Type() NodeType    { return FilterNode }
func (TransformParams) Type() NodeType { return TransformNode }

func arity(inputs []NodeID, want int) error {
	if len(inputs) != want {
		return fmt.Errorf("%w: want %d inputs, got %d", ErrArity, want, len(inputs))
	}
	return nil
}

func (p SourceParams) validate(_ *Graph, inputs []NodeID) (int, error) {
	if err := arity(inputs, 0); err != nil {
		return 0, err
	}
	if p.Source == nil {
		return 0, fmt.Errorf("%w: nil source", ErrInvalidParams)
	}
	return p.Source.NumColumns(), nil
}

func (p RangeParams) validate(g *Graph, inputs []NodeID) (int, error) {
	if err := arity(inputs, 1); err != nil {
		return 0, err
	}
	if p.Start > p.End {
		return 0, fmt.Errorf("%w: range [%d, %d)", ErrInvalidParams, p.Start, p.End)
	}
	return g.NumColumns(inputs[0]), nil
}

func (p ProjectParams) validate(g *Graph, inputs []NodeID) (int, error) {
	if err := arity(inputs, 1); err != nil {
		return 0, err
	}
	n := g.NumColumns(inputs[0])
	for _, c := range p.Columns {
		if c < 0 || c >= n {
			return 0, fmt.Errorf("%w: column %d of %d", ErrInvalidParams, c, n)
		}
	}
	return len(p.Columns), nil
}

func (UnionParams) validate(g *Graph, inputs []NodeID) (int, error) {
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: union needs at least one input", ErrArity)
	}
	n := 0
	for _, in := range inputs {
		n += g.NumColumns(in)
	}
	return n, nil
}

func (AppendParams) validate(g *Graph, inputs []NodeID) (int, error) {
	if len(inputs) < 2 {
		return 0, fmt.Errorf("%w: append needs at least two inputs, got %d", ErrArity, len(inputs))
	}
	n := g.NumColumns(inputs[0])
	for _, in := range inputs[1:] {
		if m := g.NumColumns(in); m != n {
			return 0, fmt.Errorf("%w: append of %d and %d columns", ErrInvalidParams, n, m)
		}
	}
	return n, nil
}

func (FilterParams) validate(g *Graph, inputs []NodeID) (int, error) {
	if err := arity(inputs, 2); err != nil {
		return 0, err
	}
	if m := g.NumColumns(inputs[1]); m != 1 {
		return 0, fmt.Errorf("%w: filter mask has %d columns", ErrInvalidParams, m)
	}
	return g.NumColumns(inputs[0]), nil
}

func (p TransformParams) validate(_ *Graph, inputs []NodeID) (int, error) {
	if err := arity(inputs, 1); err != nil {
		return 0, err
	}
	if p.Fn == nil || p.NumColumns < 0 {
		return 0, fmt.Errorf("%w: transform %q", ErrInvalidParams, p.Name)
	}
	return p.NumColumns, nil
}

func (p SourceParams) describe() string {
	return fmt.Sprintf("cols=%d rows=%d %v", p.Source.NumColumns(), p.Source.NumRows(), p.Source.ColumnNames())
}
func (p RangeParams) describe() string    { return fmt.Sprintf("[%d, %d)", p.Start, p.End) }
func (p ProjectParams) describe() string  { return fmt.Sprint(p.Columns) }
func (UnionParams) describe() string      { return "" }
func (AppendParams) describe() string     { return "" }
func (FilterParams) describe() string     { return "" }
func (p TransformParams) describe() string { return fmt.Sprintf("%s cols=%d", p.Name, p.NumColumns) }

// Node is an immutable operator. Inputs are as added; use Graph.Inputs for
// the current, redirect-resolved inputs.
type Node struct {
	Type       NodeType
	Params     Params
	Inputs     []NodeID
	numColumns int
}

// NumColumns returns the node's output column count.
func (n *Node) NumColumns() int { return n.numColumns }

// Project returns the projection columns of a ProjectNode. It panics for any
// other node type.
func (n *Node) Project() []int {
	return mustParams[ProjectParams](n).Columns
}

// SourceOf returns the physical source of a SourceNode. It panics for any
// other node type.
func (n *Node) SourceOf() Source {
	return mustParams[SourceParams](n).Source
}

func mustParams[P Params](n *Node) P {
	p, ok := n.Params.(P)
	if !ok {
		var zero P
		panic(fmt.Sprintf("plan: %s node has %T params, want %T", n.Type, n.Params, zero))
	}
	return p
}

// IsIdentity reports whether cols selects all n columns in order.
func IsIdentity(cols []int, n int) bool {
	if len(cols) != n {
		return false
	}
	for i, c := range cols {
		if c != i {
			return false
		}
	}
	return true
}
