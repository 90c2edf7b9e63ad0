package tables

import "errors"

var (
	// ErrClosedNode is returned by operations on a closed or removed node.
	ErrClosedNode = errors.New("node is closed")
	// ErrClosedFile is returned by operations on a closed file.
	ErrClosedFile = errors.New("file is closed")
	// ErrNode reports an invalid operation on the hierarchy.
	ErrNode = errors.New("invalid node operation")
	// ErrNoSuchNode is returned when a path does not name a node.
	ErrNoSuchNode = errors.New("no such node")
	// ErrNotGroup is returned when a group was expected.
	ErrNotGroup = errors.New("node is not a group")
	// ErrNotLeaf is returned when a leaf was expected.
	ErrNotLeaf = errors.New("node is not a leaf")
	// ErrReadOnly is returned by mutating operations on a read-only file.
	ErrReadOnly = errors.New("file is not writable")
	// ErrInvalidName reports a node name that cannot be used.
	ErrInvalidName = errors.New("invalid node name")
	// ErrIndex reports a row or range outside the leaf.
	ErrIndex = errors.New("index out of range")
	// ErrShape reports data whose shape does not fit the atom or row.
	ErrShape = errors.New("incompatible shape")
	// ErrType reports data of the wrong type for the atom.
	ErrType = errors.New("incompatible type")
	// ErrNoAttribute is returned when an attribute does not exist.
	ErrNoAttribute = errors.New("no such attribute")
)
