package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-tables/internal/dtype"
	"github.com/robert-malhotra/go-tables/internal/message"
	"github.com/robert-malhotra/go-tables/internal/object"
)

// Attribute represents an HDF5 attribute attached to a dataset or group.
type Attribute struct {
	msg  *message.Attribute
	file *File
}

func attrNames(h *object.Header) []string {
	attrs := h.Attributes()
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return names
}

func findAttr(f *File, h *object.Header, name string) *Attribute {
	for _, a := range h.Attributes() {
		if a.Name == name {
			return &Attribute{msg: a, file: f}
		}
	}
	return nil
}

// Name returns the attribute name.
func (a *Attribute) Name() string {
	return a.msg.Name
}

// Datatype returns the attribute's datatype.
func (a *Attribute) Datatype() *message.Datatype {
	return a.msg.Datatype
}

// Shape returns the dimensions of the attribute value, or nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dims
}

// NumElements returns the total number of elements.
func (a *Attribute) NumElements() int {
	if a.msg.Dataspace == nil {
		return 1
	}
	return int(a.msg.Dataspace.NumElements())
}

// IsScalar returns true if the attribute is a scalar value.
func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.Kind == message.SpaceScalar
}

// Read decodes the attribute into dest, which must point to a slice.
// Variable-length strings decode into *[]string.
func (a *Attribute) Read(dest any) error {
	dt := a.msg.Datatype
	if dt == nil {
		return fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}
	if dt.Class == message.ClassVarLen {
		strs, ok := dest.(*[]string)
		if !ok || !dt.VarLenString {
			return fmt.Errorf("attribute %q: %w: cannot read %s into %T", a.msg.Name, ErrUnsupported, dt, dest)
		}
		rows, err := a.file.readVarLen(dt, a.msg.Data, a.NumElements())
		if err != nil {
			return err
		}
		*strs = make([]string, len(rows))
		for i, r := range rows {
			(*strs)[i] = string(r)
		}
		return nil
	}
	return dtype.DecodeInto(dt, a.msg.Data, a.NumElements(), dest)
}

// Value decodes the attribute into a Go value of the matching type.
// Scalars of a non-array type return a single value (int32, float64,
// string, bool, ...); everything else returns a flat slice. Variable-length
// sequences return one typed slice per element in a []any.
func (a *Attribute) Value() (any, error) {
	dt := a.msg.Datatype
	if dt == nil {
		return nil, fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}
	n := a.NumElements()

	var v any
	switch {
	case dt.Class == message.ClassVarLen && dt.VarLenString:
		var strs []string
		if err := a.Read(&strs); err != nil {
			return nil, err
		}
		v = strs
	case dt.Class == message.ClassVarLen:
		rows, err := a.file.readVarLen(dt, a.msg.Data, n)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(rows))
		for i, r := range rows {
			if out[i], err = dtype.Decode(dt.Base, r, len(r)/int(dt.Base.Size)); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		var err error
		if v, err = dtype.Decode(dt, a.msg.Data, n); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.msg.Name, err)
		}
	}

	if a.IsScalar() && dt.Class != message.ClassArray {
		rv := reflect.ValueOf(v)
		if rv.Len() == 1 {
			return rv.Index(0).Interface(), nil
		}
	}
	return v, nil
}
