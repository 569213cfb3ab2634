// Package arraygroup reads and writes array groups.
//
// An array group is one JSON index file plus N segment files holding a set of
// logical columns that share a row count. Segment i of a group stored at
// base is named segment.FileName(base, i) and lives next to the index file;
// the index records, per column, how many rows each segment holds.
//
// Multiple segments exist only to parallelize writes. The Writer accepts
// appends to different segments concurrently and flushes them in parallel.
package arraygroup
