// Package alloc hands out file space while an HDF5 image is written.
//
// Files are written once, front to back, so allocation is append-only: each
// block starts at the current end of file, rounded up to 8 bytes. Every
// block is tagged with the kind of structure it holds so writers can report
// how much of a file is metadata, raw data, or heap payload.
//
//	a := alloc.New(48)
//	hdr := a.Alloc(120, alloc.Meta)
//	raw := a.Alloc(4096, alloc.Raw)
package alloc
