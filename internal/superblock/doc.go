// Package superblock reads and writes the HDF5 superblock.
//
// The superblock is the entry point of every HDF5 file. It records the
// offset and length widths used throughout the file and the address of the
// root group's object header. [Read] searches for the signature at offsets
// 0, 512, 1024 and 2048.
//
// Only versions 2 and 3 are handled. Both share one layout:
//
//	Offset  Size  Description
//	0       8     Signature
//	8       1     Version
//	9       1     Size of offsets (O)
//	10      1     Size of lengths
//	11      1     File consistency flags
//	12      O     Base address
//	12+O    O     Superblock extension address
//	12+2O   O     End of file address
//	12+3O   O     Root group object header address
//	12+4O   4     Checksum (lookup3)
//
// Files produced by this module always carry a version 3 superblock with
// 8-byte offsets and lengths.
package superblock
