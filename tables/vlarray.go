package tables

import (
	"fmt"
	"math"
	"slices"

	"github.com/robert-malhotra/go-tables/internal/dtype"
)

// VLArray is a leaf whose rows are variable-length runs of atoms. Rows of
// VLString and Object atoms hold a single string or value instead.
type VLArray struct {
	leafBase
}

func newVLArray(f *File, o *object) *VLArray {
	return &VLArray{leafBase{nodeBase{file: f, obj: o}}}
}

func (f *File) createVLArrayLocked(parent *object, name string, atom Atom, no *nodeOptions) (*object, error) {
	if err := atom.validate(); err != nil {
		return nil, fmt.Errorf("vlarray %q: %w", name, err)
	}
	if atom.Flavor == "" {
		atom.Flavor = FlavorNumPy
	}
	atom.Shape = slices.Clone(atom.Shape)
	o, err := f.addChild(parent, name, objVLArray)
	if err != nil {
		return nil, err
	}
	o.atom = atom
	o.dtype = atom.datatype()
	o.shape = []int{0}
	o.filters = no.filters.normalize()
	o.expectedMB = no.expectedMB
	o.data = &payload{rows: [][]byte{}}
	leafAttrs(o, classVLArray, versionVLArray, no.title)
	return o, nil
}

// bufferSize returns the I/O buffer size in bytes for a leaf expected to
// grow to expectedKB kilobytes.
func bufferSize(expectedKB float64) int {
	const factor = 1000
	switch {
	case expectedKB <= 100:
		return 5 * factor
	case expectedKB <= 1000:
		return 10 * factor
	case expectedKB <= 20000:
		return 20 * factor
	case expectedKB <= 200000:
		return 40 * factor
	case expectedKB <= 2000000:
		return 50 * factor
	}
	return 60 * factor
}

// chunkRows returns the number of rows per chunk of a VLArray.
func chunkRows(itemsize, chunkTimes int, expectedMB float64) int {
	return max(bufferSize(expectedMB*1024)/(itemsize*chunkTimes), 1)
}

func (v *VLArray) ChunkShape() []int {
	v.file.mu.RLock()
	defer v.file.mu.RUnlock()
	o := v.obj
	return []int{chunkRows(o.atom.ItemSize, v.file.params.ChunkTimes, o.expectedMB)}
}

func (v *VLArray) Size() int64 {
	if err := v.rlock(); err != nil {
		return 0
	}
	defer v.file.mu.RUnlock()
	p, err := v.file.leafData(v.obj, true)
	if err != nil {
		return 0
	}
	return p.size()
}

// atomSize is the stored size of one object of a row.
func (o *object) atomSize() int {
	return int(o.dtype.Size)
}

// encodeRow converts a row value to its stored bytes.
func (o *object) encodeRow(value any) ([]byte, error) {
	a := o.atom
	switch a.Kind {
	case KindVLString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: VLString rows must be strings, got %T", ErrType, value)
		}
		return []byte(s), nil
	case KindObject:
		return marshalObject(value)
	}

	flat, shape, err := flatten(value)
	if err != nil {
		return nil, err
	}
	if et := flat.Type().Elem(); !a.accepts(et.Kind()) {
		return nil, fmt.Errorf("%w: cannot store %s in a %s atom", ErrType, et, a)
	}
	elems := a.Elements()
	switch {
	case len(shape) == 0:
		if elems != 1 {
			return nil, fmt.Errorf("%w: scalar does not fill atom shape %v", ErrShape, a.Shape)
		}
	case len(shape) == 1:
		if shape[0]%elems != 0 {
			return nil, fmt.Errorf("%w: %d values do not fill atoms of shape %v", ErrShape, shape[0], a.Shape)
		}
	default:
		if !slices.Equal(shape[1:], a.Shape) && !slices.Equal(shape, a.Shape) {
			return nil, fmt.Errorf("%w: %v does not match atom shape %v", ErrShape, shape, a.Shape)
		}
	}
	raw, err := dtype.Encode(o.dtype, flat.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrType, err)
	}
	return raw, nil
}

// decodeRow converts stored row bytes to the row value.
func (o *object) decodeRow(raw []byte) (any, error) {
	switch o.atom.Kind {
	case KindVLString:
		return string(raw), nil
	case KindObject:
		return unmarshalObject(raw)
	}
	return dtype.Decode(o.dtype, raw, len(raw)/o.atomSize())
}

// Append adds one row. Numeric atoms take a slice of values, flat or
// nested by the atom shape, or a single value; an empty slice adds an
// empty row. VLString atoms take a string and Object atoms any value CBOR
// can encode.
func (v *VLArray) Append(row any) error {
	if err := v.lock(); err != nil {
		return err
	}
	defer v.file.mu.Unlock()
	o := v.obj
	raw, err := o.encodeRow(row)
	if err != nil {
		return fmt.Errorf("%s: %w", o.path(), err)
	}
	p, err := v.file.pin(o)
	if err != nil {
		return err
	}
	p.rows = append(p.rows, raw)
	o.shape[0] = len(p.rows)
	return nil
}

// Read returns the rows from start to stop by step. Negative bounds count
// from the end, bounds clamp to the rows present and step must be
// positive.
func (v *VLArray) Read(start, stop, step int) ([]any, error) {
	if err := v.rlock(); err != nil {
		return nil, err
	}
	defer v.file.mu.RUnlock()
	return v.readLocked(start, stop, step)
}

func (v *VLArray) readLocked(start, stop, step int) ([]any, error) {
	o := v.obj
	start, stop, step, err := rowRange(start, stop, step, o.nrows())
	if err != nil {
		return nil, err
	}
	p, err := v.file.leafData(o, true)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, rangeLen(start, stop, step))
	for i := start; i < stop; i += step {
		row, err := o.decodeRow(p.rows[i])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", o.path(), i, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// ReadAll returns every row.
func (v *VLArray) ReadAll() ([]any, error) {
	return v.Read(0, math.MaxInt, 1)
}

// Row returns row i. Negative indices count from the end.
func (v *VLArray) Row(i int) (any, error) {
	if err := v.rlock(); err != nil {
		return nil, err
	}
	defer v.file.mu.RUnlock()
	o := v.obj
	i, err := rowIndex(i, o.nrows())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.path(), err)
	}
	p, err := v.file.leafData(o, true)
	if err != nil {
		return nil, err
	}
	return o.decodeRow(p.rows[i])
}

// ReadRows reads rows whose values have type []T.
func ReadRows[T any](v *VLArray, start, stop, step int) ([][]T, error) {
	rows, err := v.Read(start, stop, step)
	if err != nil {
		return nil, err
	}
	out := make([][]T, len(rows))
	for i, r := range rows {
		s, ok := r.([]T)
		if !ok {
			return nil, fmt.Errorf("%w: row holds %T, not %T", ErrType, r, s)
		}
		out[i] = s
	}
	return out, nil
}

// Range selects the objects of a row with slice semantics. Stop beyond
// the row length clamps to it; Step 0 means 1.
type Range struct {
	Start, Stop, Step int
}

func (r *Range) indices(n int) ([]int, error) {
	if r == nil {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	step := r.Step
	if step == 0 {
		step = 1
	}
	start, stop, step, err := rowRange(r.Start, r.Stop, step, n)
	if err != nil {
		return nil, err
	}
	var idx []int
	for i := start; i < stop; i += step {
		idx = append(idx, i)
	}
	return idx, nil
}

// SetRow replaces the objects rng selects in row nrow, or the whole row
// when rng is nil. The value may not hold more objects than the row; a
// single numeric value fills every selected object. Replacements of
// VLString and Object rows must encode to the same number of bytes.
func (v *VLArray) SetRow(nrow int, rng *Range, value any) error {
	if err := v.lock(); err != nil {
		return err
	}
	defer v.file.mu.Unlock()
	o := v.obj
	i, err := rowIndex(nrow, o.nrows())
	if err != nil {
		return fmt.Errorf("%s: %w", o.path(), err)
	}
	raw, err := o.encodeRow(value)
	if err != nil {
		return fmt.Errorf("%s: %w", o.path(), err)
	}
	cur, err := v.file.leafData(o, true)
	if err != nil {
		return err
	}

	size := o.atomSize()
	nobj := len(cur.rows[i]) / size
	vobj := len(raw) / size
	if vobj > nobj {
		return fmt.Errorf("%s: %w: value has %d objects, row %d has %d", o.path(), ErrShape, vobj, i, nobj)
	}
	if o.atom.IsSpecial() && rng == nil && vobj != nobj {
		return fmt.Errorf("%s: %w: replacement is %d bytes, row %d is %d", o.path(), ErrShape, vobj, i, nobj)
	}
	idx, err := rng.indices(nobj)
	if err != nil {
		return err
	}
	broadcast := vobj == 1 && !o.atom.IsSpecial()
	if vobj != len(idx) && !broadcast {
		return fmt.Errorf("%s: %w: value has %d objects for %d selected", o.path(), ErrShape, vobj, len(idx))
	}

	p, err := v.file.pin(o)
	if err != nil {
		return err
	}
	row := p.rows[i]
	for k, j := range idx {
		src := raw[(k%vobj)*size : (k%vobj+1)*size]
		copy(row[j*size:(j+1)*size], src)
	}
	return nil
}
