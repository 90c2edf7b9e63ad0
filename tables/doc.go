// Package tables manages a hierarchy of typed nodes stored in a single
// HDF5 file.
//
// A file holds groups, which contain nodes by name, and leaves, which hold
// data: an Array is a homogeneous N-dimensional array, a VLArray is a
// ragged array whose rows are variable-length runs of atoms. Every node
// carries an attribute set.
//
// Files opened for writing keep an in-memory image of the hierarchy that
// is loaded lazily from disk. Flush and Close write the image bottom-up to
// a temporary file and rename it over the original.
//
//	f, err := tables.Open("data.h5", tables.ModeWrite)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	v, err := f.CreateVLArray("/", "ragged", tables.Int32Atom())
//	if err != nil {
//	    return err
//	}
//	_ = v.Append([]int32{5, 6})
//	_ = v.Append([]int32{5, 6, 7})
package tables
