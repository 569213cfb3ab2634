// Package hash provides the block checksum used by segment files.
//
// Checksums are CRC32-Castagnoli (CRC32C). Go's hash/crc32 uses the SSE4.2
// and ARM CRC instructions for this polynomial when they are available.
//
// One-shot:
//
//	sum := hash.CRC32C(block)
//
// Streaming, for blocks assembled from several buffers:
//
//	h := hash.NewCRC32C()
//	h.Write(header)
//	h.Write(payload)
//	sum := h.Sum32()
package hash
