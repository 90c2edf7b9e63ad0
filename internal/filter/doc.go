// Package filter implements the HDF5 filter pipeline for chunked data.
//
// Filters run in declared order on write and in reverse order on read.
// Supported filters:
//
//   - deflate (1): zlib streams via klauspost/compress
//   - shuffle (2): byte transposition by element size
//   - fletcher32 (3): trailing checksum, stored little-endian
//   - lz4 (32004): the registered HDF5 LZ4 block format
//
// An unknown filter that is flagged optional is skipped; any other unknown
// filter makes the dataset unreadable.
package filter
