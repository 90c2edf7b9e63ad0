// Package object reads version 1 and 2 HDF5 object headers and writes
// version 2 ones.
//
// Every group and dataset is described by an object header: a checksummed
// block (signature "OHDR") holding a list of header messages, optionally
// continued in further blocks (signature "OCHK").
//
//	hdr, err := object.Read(reader, addr)
//	space := hdr.Dataspace()
//	for _, a := range hdr.Attributes() { ... }
//
// Version 1 headers, found in files written with the earliest format
// settings, have no signature or checksum and 8-byte aligned messages.
//
// [Encode] builds a header for a message list. Headers written here are a
// single block; a NIL message pads the block up to a requested minimum so
// small groups match the sizes other HDF5 writers produce.
package object
