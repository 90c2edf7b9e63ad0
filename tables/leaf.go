package tables

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/robert-malhotra/go-tables/internal/message"
)

// Leaf is a node holding data.
type Leaf interface {
	Node
	// NRows returns the length of the first dimension, 1 for scalars.
	NRows() int
	Shape() []int
	Atom() Atom
	Filters() Filters
	// ByteOrder returns "little", "big" or "irrelevant".
	ByteOrder() string
	Flavor() string
	// ChunkShape returns the chunk dimensions, nil for contiguous data.
	ChunkShape() []int
	// Size returns the number of data bytes held by the leaf.
	Size() int64
}

// leafBase implements the metadata accessors shared by leaves.
type leafBase struct {
	nodeBase
}

func (l *leafBase) NRows() int {
	l.file.mu.RLock()
	defer l.file.mu.RUnlock()
	return l.obj.nrows()
}

func (l *leafBase) Shape() []int {
	l.file.mu.RLock()
	defer l.file.mu.RUnlock()
	return slices.Clone(l.obj.shape)
}

func (l *leafBase) Atom() Atom {
	l.file.mu.RLock()
	defer l.file.mu.RUnlock()
	a := l.obj.atom
	a.Shape = slices.Clone(a.Shape)
	return a
}

func (l *leafBase) Filters() Filters {
	l.file.mu.RLock()
	defer l.file.mu.RUnlock()
	return l.obj.filters
}

func (l *leafBase) ByteOrder() string {
	l.file.mu.RLock()
	defer l.file.mu.RUnlock()
	return byteOrder(l.obj)
}

func byteOrder(o *object) string {
	switch {
	case o.atom.Kind == KindString, o.atom.IsSpecial(), o.atom.ItemSize == 1:
		return "irrelevant"
	case o.dtype != nil && o.dtype.Scalar().Order == message.OrderBE:
		return "big"
	}
	return "little"
}

func (l *leafBase) Flavor() string {
	l.file.mu.RLock()
	defer l.file.mu.RUnlock()
	return l.obj.atom.Flavor
}

// leafAttrs sets the system attributes of a new leaf.
func leafAttrs(o *object, class, version, title string) {
	o.attrs["CLASS"] = class
	o.attrs["VERSION"] = version
	o.attrs["TITLE"] = title
	o.attrs["FLAVOR"] = o.atom.Flavor
}

// flatten returns the innermost values of a scalar or (nested) slice in
// row-major order, with the slice shape. Ragged nesting is an ErrShape.
func flatten(v any) (reflect.Value, []int, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Value{}, nil, fmt.Errorf("%w: nil value", ErrType)
	}
	et := rv.Type()
	depth := 0
	for et.Kind() == reflect.Slice || et.Kind() == reflect.Array {
		et = et.Elem()
		depth++
	}
	if et.Kind() == reflect.Interface {
		return reflect.Value{}, nil, fmt.Errorf("%w: cannot store values of type %T", ErrType, v)
	}

	shape := make([]int, depth)
	seen := make([]bool, depth)
	flat := reflect.MakeSlice(reflect.SliceOf(et), 0, 0)
	var walk func(v reflect.Value, d int) error
	walk = func(v reflect.Value, d int) error {
		if d == depth {
			flat = reflect.Append(flat, v)
			return nil
		}
		n := v.Len()
		if !seen[d] {
			shape[d], seen[d] = n, true
		} else if shape[d] != n {
			return fmt.Errorf("%w: ragged nested slice", ErrShape)
		}
		for i := 0; i < n; i++ {
			if err := walk(v.Index(i), d+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return reflect.Value{}, nil, err
	}
	return flat, shape, nil
}

// rowRange applies slice semantics to start, stop and step over n rows:
// negative bounds count from the end and bounds clamp to [0, n].
func rowRange(start, stop, step, n int) (int, int, int, error) {
	if step < 1 {
		return 0, 0, 0, fmt.Errorf("%w: step %d must be positive", ErrIndex, step)
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	start = min(max(start, 0), n)
	stop = min(max(stop, 0), n)
	return start, stop, step, nil
}

// rangeLen returns the number of rows selected by a normalized range.
func rangeLen(start, stop, step int) int {
	if stop <= start {
		return 0
	}
	return (stop - start + step - 1) / step
}

// rowIndex resolves a possibly negative row index.
func rowIndex(i, n int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: row %d of %d", ErrIndex, i, n)
	}
	return i, nil
}
