package optimizer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/colframe/plan"
)

// ErrNotConverged is reported in Result.Err when the rewrite caps were hit or
// a plan shape repeated. The returned plan is still valid.
var ErrNotConverged = errors.New("optimizer: plan did not converge")

const (
	// DefaultMaxPasses bounds the number of worklist passes.
	DefaultMaxPasses = 64
	// DefaultMaxRewritesPerPass bounds the rewrites within one pass.
	DefaultMaxRewritesPerPass = 4096
)

// Option configures an Optimizer.
type Option func(*options)

type options struct {
	logger             *slog.Logger
	maxPasses          int
	maxRewritesPerPass int
	transforms         []Transform
}

// WithLogger sets the logger. Applied rewrites are logged at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxPasses bounds the number of passes.
func WithMaxPasses(n int) Option {
	return func(o *options) { o.maxPasses = n }
}

// WithMaxRewritesPerPass bounds the rewrites of a single pass.
func WithMaxRewritesPerPass(n int) Option {
	return func(o *options) { o.maxRewritesPerPass = n }
}

// WithTransforms replaces the transform list. Order is priority order.
func WithTransforms(ts ...Transform) Option {
	return func(o *options) { o.transforms = ts }
}

// Result describes one Optimize run.
type Result struct {
	// Root is the optimized root.
	Root plan.NodeID
	// Passes is the number of worklist passes run.
	Passes int
	// Rewrites is the total number of applied transforms.
	Rewrites int
	// Converged is set when a pass applied no transform.
	Converged bool
	// Err wraps ErrNotConverged when Converged is unset.
	Err error
	// Applied counts applied rewrites per transform name.
	Applied map[string]int
}

// Optimizer runs transforms over plan graphs. It is safe for concurrent use
// on distinct graphs; a graph must not be optimized concurrently.
type Optimizer struct {
	opts   options
	byType map[plan.NodeType][]Transform
}

// New creates an Optimizer with DefaultTransforms unless WithTransforms is given.
func New(optFns ...Option) *Optimizer {
	opts := options{
		maxPasses:          DefaultMaxPasses,
		maxRewritesPerPass: DefaultMaxRewritesPerPass,
		transforms:         DefaultTransforms(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.maxPasses <= 0 {
		opts.maxPasses = DefaultMaxPasses
	}
	if opts.maxRewritesPerPass <= 0 {
		opts.maxRewritesPerPass = DefaultMaxRewritesPerPass
	}

	byType := make(map[plan.NodeType][]Transform)
	for _, t := range opts.transforms {
		for _, nt := range t.NodeTypes() {
			byType[nt] = append(byType[nt], t)
		}
	}
	return &Optimizer{opts: opts, byType: byType}
}

// Transforms returns the transforms in priority order.
func (o *Optimizer) Transforms() []Transform {
	return append([]Transform(nil), o.opts.transforms...)
}

// Optimize rewrites the plan under root in place and returns the new root.
func (o *Optimizer) Optimize(g *plan.Graph, root plan.NodeID) Result {
	res := Result{Root: g.Resolve(root), Applied: make(map[string]int)}
	seen := map[uint64]bool{g.Fingerprint(res.Root): true}

	for res.Passes < o.opts.maxPasses {
		res.Passes++
		n := o.pass(g, res.Root, &res)
		res.Root = g.Resolve(res.Root)
		if n == 0 {
			res.Converged = true
			return res
		}

		fp := g.Fingerprint(res.Root)
		if seen[fp] {
			res.Err = fmt.Errorf("%w: plan repeated after %d passes", ErrNotConverged, res.Passes)
			o.warn(&res)
			return res
		}
		seen[fp] = true
	}

	res.Err = fmt.Errorf("%w: %d passes", ErrNotConverged, res.Passes)
	o.warn(&res)
	return res
}

func (o *Optimizer) warn(res *Result) {
	if o.opts.logger != nil {
		o.opts.logger.Warn("optimizer did not converge",
			"passes", res.Passes,
			"rewrites", res.Rewrites,
			"error", res.Err,
		)
	}
}

// pass runs the worklist once over the plan under root and returns the
// number of rewrites.
func (o *Optimizer) pass(g *plan.Graph, root plan.NodeID, res *Result) int {
	info := plan.NewInfo(g, root)
	c := &Context{Graph: g, Info: info, Logger: o.opts.logger}

	var queue []plan.NodeID
	queued := make(map[plan.NodeID]bool)
	push := func(id plan.NodeID) {
		id = g.Resolve(id)
		if !queued[id] {
			queued[id] = true
			queue = append(queue, id)
		}
	}
	for _, id := range g.Reachable(root) {
		push(id)
	}

	rewrites := 0
	for len(queue) > 0 && rewrites < o.opts.maxRewritesPerPass {
		id := queue[0]
		queue = queue[1:]
		delete(queued, id)

		id = g.Resolve(id)
		if id != info.Root() && len(info.Parents(id)) == 0 {
			continue
		}

		for _, t := range o.byType[g.Type(id)] {
			repl, ok := t.Apply(c, id)
			if !ok {
				continue
			}
			parents := info.Parents(id)
			g.Replace(id, repl)
			info.Invalidate()

			rewrites++
			res.Rewrites++
			res.Applied[t.Name()]++
			if o.opts.logger != nil {
				o.opts.logger.Debug("applied transform",
					"transform", t.Name(),
					"node", id,
					"replacement", repl,
				)
			}

			push(repl)
			for _, in := range g.Inputs(repl) {
				push(in)
			}
			for _, p := range parents {
				push(p)
			}
			break
		}
	}
	return rewrites
}
