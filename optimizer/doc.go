// Package optimizer rewrites plan graphs with a worklist of algebraic
// transforms until no transform applies.
//
// Every Transform is a precondition plus a rewrite over one node. A
// transform that does not apply returns (0, false) and leaves the graph
// untouched; one that applies adds its replacement subgraph and returns its
// root, which the engine splices in with plan.Graph.Replace.
//
// The rules do not provably terminate together, so the engine caps passes
// and rewrites per pass and detects repeated plan shapes. A plan that does
// not converge is still valid: Optimize returns it with Converged unset.
package optimizer
