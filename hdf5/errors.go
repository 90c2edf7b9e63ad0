// Package hdf5 reads and writes the subset of HDF5 used by go-tables:
// superblock v2/v3, version 2 object headers, compact link storage,
// contiguous, compact and single-chunk layouts, and global heap
// variable-length data.
package hdf5

import "errors"

// Common errors
var (
	ErrNotHDF5     = errors.New("not an HDF5 file")
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
)

// MaxLinkDepth is the maximum number of soft links followed while
// resolving a single path.
const MaxLinkDepth = 100
