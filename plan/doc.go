// Package plan models logical query plans as a DAG of immutable nodes.
//
// Nodes live in an arena (Graph) and are addressed by NodeID. A node never
// changes after Add; rewriting a plan means adding replacement nodes and
// calling Replace, which redirects every reference to the old node in O(1).
// Resolve follows redirects and compresses the chains it walks.
//
// Node parameters are a closed sum type (Params) checked once in Add, so the
// optimizer reads them without further validation. Derived properties used
// while rewriting (column counts, parent lists) are cached per pass in Info.
package plan
