// Package blockmanager mediates every block read of a process.
//
// A Manager maps resolved segment paths to reference-counted segment entries,
// loads each segment's block index once, and serves decoded blocks through a
// shared decoded-block cache. Open file handles come from a bounded pool: the
// total number of live handles never exceeds the configured limit no matter
// how many columns are addressed, and idle handles of other segments are
// closed (least recently pooled first) to make room.
//
// Pooled handles are tracked in a generational slot table. A segment keeps
// references (slot, generation) to the handles it returned; when pool pressure
// reclaims a slot its generation is bumped, so a later reuse attempt detects
// the stale reference and opens the file again.
//
// Data-layer faults (missing files, corrupt footers, short reads, failed
// decompression) are returned as errors. A failed index load is sticky: every
// later open of that segment fails with ErrIndexLoad.
package blockmanager
