// Package heap reads and writes HDF5 global heap collections.
//
// A global heap collection (signature "GCOL") stores the payloads of
// variable-length data. Each element of a vlen dataset holds a sequence
// length and an [ID] naming the collection address and the object index
// inside it.
//
// Collections are at least 4096 bytes. Space past the last object is
// described by the free-space object (index 0). Objects are padded to
// 8-byte boundaries. A collection indexes objects with 16 bits, so
// [WriteObjects] spreads large object lists over several collections.
package heap
