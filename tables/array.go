package tables

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/robert-malhotra/go-tables/internal/dtype"
)

// Array is a leaf holding a homogeneous N-dimensional array.
type Array struct {
	leafBase
}

func newArray(f *File, o *object) *Array {
	return &Array{leafBase{nodeBase{file: f, obj: o}}}
}

func (f *File) createArrayLocked(parent *object, name string, data any, no *nodeOptions) (*object, error) {
	flat, shape, err := flatten(data)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}
	atom, err := atomFromGoType(flat.Type().Elem())
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}
	if atom.Kind == KindString {
		width := 1
		for i := 0; i < flat.Len(); i++ {
			width = max(width, flat.Index(i).Len())
		}
		atom = StringAtom(width)
	}
	filters := no.filters.normalize()
	if len(shape) == 0 && filters.pipeline(atom.ItemSize) != nil {
		return nil, fmt.Errorf("array %q: %w: filters need at least one dimension", name, ErrShape)
	}
	dt := atom.datatype()
	raw, err := dtype.Encode(dt, flat.Interface())
	if err != nil {
		return nil, fmt.Errorf("array %q: %w: %v", name, ErrType, err)
	}

	o, err := f.addChild(parent, name, objArray)
	if err != nil {
		return nil, err
	}
	o.atom = atom
	o.dtype = dt
	o.shape = shape
	o.filters = filters
	if filters.pipeline(atom.ItemSize) != nil {
		o.chunk = make([]int, len(shape))
		for i, d := range shape {
			o.chunk[i] = max(d, 1)
		}
	}
	o.data = &payload{raw: raw}
	leafAttrs(o, classArray, versionArray, no.title)
	return o, nil
}

func (o *object) numElements() int {
	n := 1
	for _, d := range o.shape {
		n *= d
	}
	return n
}

func (a *Array) ChunkShape() []int {
	a.file.mu.RLock()
	defer a.file.mu.RUnlock()
	return slices.Clone(a.obj.chunk)
}

func (a *Array) Size() int64 {
	a.file.mu.RLock()
	defer a.file.mu.RUnlock()
	return int64(a.obj.numElements()) * int64(a.obj.dtype.Size)
}

// Read decodes every element into dest, a pointer to a slice, in
// row-major order. Numeric values convert to the slice element type.
func (a *Array) Read(dest any) error {
	if err := a.rlock(); err != nil {
		return err
	}
	defer a.file.mu.RUnlock()
	p, err := a.file.leafData(a.obj, true)
	if err != nil {
		return err
	}
	if err := dtype.DecodeInto(a.obj.dtype, p.raw, a.obj.numElements(), dest); err != nil {
		return fmt.Errorf("%s: %w", a.obj.path(), err)
	}
	return nil
}

// ReadRange returns the selected rows of the first dimension as a flat
// typed slice, with slice semantics for start, stop and step.
func (a *Array) ReadRange(start, stop, step int) (any, error) {
	if err := a.rlock(); err != nil {
		return nil, err
	}
	defer a.file.mu.RUnlock()
	o := a.obj
	if len(o.shape) == 0 {
		return nil, fmt.Errorf("%s: %w: scalar array has no rows", o.path(), ErrShape)
	}
	start, stop, step, err := rowRange(start, stop, step, o.shape[0])
	if err != nil {
		return nil, err
	}
	p, err := a.file.leafData(o, true)
	if err != nil {
		return nil, err
	}

	rowElems := 1
	for _, d := range o.shape[1:] {
		rowElems *= d
	}
	rowBytes := rowElems * int(o.dtype.Size)
	n := rangeLen(start, stop, step)
	buf := make([]byte, 0, n*rowBytes)
	for i := start; i < stop; i += step {
		buf = append(buf, p.raw[i*rowBytes:(i+1)*rowBytes]...)
	}
	v, err := dtype.Decode(o.dtype, buf, n*rowElems)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.path(), err)
	}
	return v, nil
}

// Value returns every element as a flat typed slice, or a single value
// for a scalar array.
func (a *Array) Value() (any, error) {
	if err := a.rlock(); err != nil {
		return nil, err
	}
	defer a.file.mu.RUnlock()
	p, err := a.file.leafData(a.obj, true)
	if err != nil {
		return nil, err
	}
	v, err := dtype.Decode(a.obj.dtype, p.raw, a.obj.numElements())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.obj.path(), err)
	}
	if len(a.obj.shape) == 0 {
		return reflect.ValueOf(v).Index(0).Interface(), nil
	}
	return v, nil
}
