// Package btree reads the B-trees HDF5 uses to index the chunks of a
// chunked dataset and the members of old-style groups.
//
// Two index formats are supported:
//
//   - Version 1 B-trees (signature "TREE", node type 1), written by layout
//     message version 3 and by most PyTables files.
//   - Version 2 B-trees (signature "BTHD") holding chunk records of type 10
//     (unfiltered) or 11 (filtered), written by layout message version 4.
//
// Both readers return a flat list of [Chunk] values whose offsets are
// element coordinates, so callers can place chunks without knowing which
// index produced them.
//
// [ReadGroup] walks the other kind of version 1 B-tree (node type 0) that
// indexes the symbol table nodes ("SNOD") of old-style groups, resolving
// member names through the group's local heap.
package btree
