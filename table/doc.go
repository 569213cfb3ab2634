// Package table composes per-column block streams into row-oriented reads.
//
// A Column is one logical column across all segments of an array group. A
// Table is a list of columns sharing a row count, possibly drawn from several
// array groups. Tables can be iterated in row-major batches, read through a
// roaring bitmap selection that skips unselected blocks, and scanned in
// parallel: ScanParallel splits [0, rows) into contiguous ranges and walks
// several tables in lockstep, one range per worker.
package table
