// Package hash provides the CRC32-Castagnoli checksums that protect tensor
// frames on disk and object uploads in flight.
//
// One-shot:
//
//	sum := hash.CRC32C(payload)
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum := h.Sum32()
package hash
