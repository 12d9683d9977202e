// Package tensor provides the dense N-D container used by the filtering
// front-ends and a compact, checksummed frame format for storing tensors in
// a blobstore.
//
// # Frame Format
//
//	magic "PMTO" | version u8 | dtype u8 | compression u8 | rank u8 |
//	shape u32 x rank | rawLen u64 | crc32c u32 | payload
//
// All integers are little-endian. The payload holds the little-endian
// element values, optionally compressed with LZ4 or ZSTD. The CRC32C
// (Castagnoli) covers the uncompressed payload.
package tensor
