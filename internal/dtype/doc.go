// Package dtype converts between HDF5 datatypes and Go values.
//
//	HDF5 class          Go type
//	fixed-point         int8..int64, uint8..uint64 by size and sign
//	floating-point      float32, float64
//	bitfield (1 byte)   bool
//	string (fixed)      string, NUL or space padding trimmed
//	array               flat slice of the base type
//
// [Decode] turns n raw elements into a typed slice; [DecodeInto] does the
// same into a caller's slice pointer, converting between numeric kinds.
// [Encode] is the reverse and accepts scalars or slices of any numeric kind.
// Variable-length types are resolved through the global heap by the caller;
// this package handles their element types.
package dtype
