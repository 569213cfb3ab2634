package optimizer

import (
	"log/slog"

	"github.com/hupe1980/colframe/plan"
)

// Context is handed to every transform.
type Context struct {
	Graph  *plan.Graph
	Info   *plan.Info
	Logger *slog.Logger
}

// Transform is one algebraic identity over plan nodes.
type Transform interface {
	// Name identifies the transform in logs and Result.Applied.
	Name() string
	// NodeTypes lists the node types the transform can match.
	NodeTypes() []plan.NodeType
	// Apply rewrites id and returns the replacement. It returns false
	// without adding nodes when its precondition does not hold.
	Apply(c *Context, id plan.NodeID) (plan.NodeID, bool)
}

// DefaultTransforms returns the built-in transforms in priority order.
func DefaultTransforms() []Transform {
	return []Transform{
		EliminateIdentityProject{},
		FoldProjectSource{},
		FuseProjects{},
		SplitProject{},
		FlattenUnion{},
		NarrowUnion{},
		PushProjectAppend{},
		PushProjectFilter{},
	}
}
