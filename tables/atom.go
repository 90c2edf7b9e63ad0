package tables

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/robert-malhotra/go-tables/internal/message"
)

// Kind is the element type of an atom.
type Kind int

const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	// KindString is a fixed-width string.
	KindString
	// KindVLString stores each row as one UTF-8 string.
	KindVLString
	// KindObject stores each row as one serialized Go value.
	KindObject
)

var kindNames = [...]string{
	KindBool:     "bool",
	KindInt8:     "int8",
	KindInt16:    "int16",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint8:    "uint8",
	KindUint16:   "uint16",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindString:   "string",
	KindVLString: "vlstring",
	KindObject:   "object",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Flavors recorded in the FLAVOR attribute.
const (
	FlavorNumPy    = "numpy"
	FlavorVLString = "VLString"
	FlavorObject   = "Object"
)

// Atom describes one element of a leaf.
type Atom struct {
	Kind Kind
	// Shape is the element shape; nil for scalar elements.
	Shape []int
	// ItemSize is the size in bytes of one base value.
	ItemSize int
	Flavor   string
}

func numAtom(k Kind, size int) Atom {
	return Atom{Kind: k, ItemSize: size, Flavor: FlavorNumPy}
}

func BoolAtom() Atom    { return numAtom(KindBool, 1) }
func Int8Atom() Atom    { return numAtom(KindInt8, 1) }
func Int16Atom() Atom   { return numAtom(KindInt16, 2) }
func Int32Atom() Atom   { return numAtom(KindInt32, 4) }
func Int64Atom() Atom   { return numAtom(KindInt64, 8) }
func Uint8Atom() Atom   { return numAtom(KindUint8, 1) }
func Uint16Atom() Atom  { return numAtom(KindUint16, 2) }
func Uint32Atom() Atom  { return numAtom(KindUint32, 4) }
func Uint64Atom() Atom  { return numAtom(KindUint64, 8) }
func Float32Atom() Atom { return numAtom(KindFloat32, 4) }
func Float64Atom() Atom { return numAtom(KindFloat64, 8) }

// StringAtom returns a fixed-width string atom. Longer strings are
// truncated on write.
func StringAtom(itemsize int) Atom {
	return Atom{Kind: KindString, ItemSize: max(itemsize, 1), Flavor: FlavorNumPy}
}

// VLStringAtom returns an atom for VLArrays whose rows are single UTF-8
// strings.
func VLStringAtom() Atom {
	return Atom{Kind: KindVLString, ItemSize: 1, Flavor: FlavorVLString}
}

// ObjectAtom returns an atom for VLArrays whose rows are arbitrary Go
// values, serialized with CBOR.
func ObjectAtom() Atom {
	return Atom{Kind: KindObject, ItemSize: 1, Flavor: FlavorObject}
}

// WithShape returns a copy of a with the given element shape.
func (a Atom) WithShape(dims ...int) Atom {
	a.Shape = append([]int(nil), dims...)
	return a
}

// Elements returns the number of base values in one atom.
func (a Atom) Elements() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// AtomSize returns the size in bytes of one atom.
func (a Atom) AtomSize() int {
	return a.ItemSize * a.Elements()
}

// IsSpecial reports whether rows of this atom are a single value rather
// than a run of atoms.
func (a Atom) IsSpecial() bool {
	return a.Kind == KindVLString || a.Kind == KindObject
}

func (a Atom) String() string {
	var b strings.Builder
	b.WriteString(a.Kind.String())
	if a.Kind == KindString {
		fmt.Fprintf(&b, "[%d]", a.ItemSize)
	}
	if len(a.Shape) > 0 {
		fmt.Fprintf(&b, "%v", a.Shape)
	}
	return b.String()
}

func (a Atom) validate() error {
	if a.Kind < KindBool || a.Kind > KindObject {
		return fmt.Errorf("%w: unknown atom kind %d", ErrType, int(a.Kind))
	}
	if a.ItemSize < 1 {
		return fmt.Errorf("%w: atom itemsize %d", ErrType, a.ItemSize)
	}
	for _, d := range a.Shape {
		if d < 1 {
			return fmt.Errorf("%w: atom shape %v has a zero dimension", ErrShape, a.Shape)
		}
	}
	return nil
}

// scalarType is the stored type of one base value.
func (a Atom) scalarType() *message.Datatype {
	switch a.Kind {
	case KindBool:
		return message.Bitfield(1)
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return message.Integer(a.ItemSize, true)
	case KindUint8, KindUint16, KindUint32, KindUint64, KindVLString, KindObject:
		return message.Integer(a.ItemSize, false)
	case KindFloat32, KindFloat64:
		return message.Float(a.ItemSize)
	case KindString:
		return message.FixedString(a.ItemSize, message.CharsetUTF8)
	}
	return nil
}

// datatype is the stored type of one atom.
func (a Atom) datatype() *message.Datatype {
	dt := a.scalarType()
	if len(a.Shape) == 0 || a.IsSpecial() {
		return dt
	}
	dims := make([]uint32, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = uint32(d)
	}
	return message.Array(dt, dims...)
}

// goType is the Go type of one base value.
func (a Atom) goType() reflect.Type {
	switch a.Kind {
	case KindBool:
		return reflect.TypeOf(false)
	case KindInt8:
		return reflect.TypeOf(int8(0))
	case KindInt16:
		return reflect.TypeOf(int16(0))
	case KindInt32:
		return reflect.TypeOf(int32(0))
	case KindInt64:
		return reflect.TypeOf(int64(0))
	case KindUint8, KindVLString, KindObject:
		return reflect.TypeOf(uint8(0))
	case KindUint16:
		return reflect.TypeOf(uint16(0))
	case KindUint32:
		return reflect.TypeOf(uint32(0))
	case KindUint64:
		return reflect.TypeOf(uint64(0))
	case KindFloat32:
		return reflect.TypeOf(float32(0))
	case KindFloat64:
		return reflect.TypeOf(float64(0))
	case KindString:
		return reflect.TypeOf("")
	}
	return nil
}

// atomFromDatatype maps a stored atom type back to an Atom. Special
// atoms are recognized by flavor.
func atomFromDatatype(dt *message.Datatype, flavor string) (Atom, error) {
	switch flavor {
	case FlavorVLString:
		return VLStringAtom(), nil
	case FlavorObject:
		return ObjectAtom(), nil
	}
	if flavor == "" {
		flavor = FlavorNumPy
	}

	var shape []int
	for dt.Class == message.ClassArray && dt.Base != nil {
		for _, d := range dt.Dims {
			shape = append(shape, int(d))
		}
		dt = dt.Base
	}

	var a Atom
	switch dt.Class {
	case message.ClassFixedPoint:
		k, ok := intKinds[intKey{int(dt.Size), dt.Signed}]
		if !ok {
			return Atom{}, fmt.Errorf("%w: %s", ErrType, dt)
		}
		a = numAtom(k, int(dt.Size))
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			a = Float32Atom()
		case 8:
			a = Float64Atom()
		default:
			return Atom{}, fmt.Errorf("%w: %s", ErrType, dt)
		}
	case message.ClassBitfield:
		if dt.Size != 1 {
			return Atom{}, fmt.Errorf("%w: %s", ErrType, dt)
		}
		a = BoolAtom()
	case message.ClassString:
		a = StringAtom(int(dt.Size))
	default:
		return Atom{}, fmt.Errorf("%w: %s", ErrType, dt)
	}
	a.Shape = shape
	a.Flavor = flavor
	return a, nil
}

type intKey struct {
	size   int
	signed bool
}

var intKinds = map[intKey]Kind{
	{1, true}: KindInt8, {2, true}: KindInt16, {4, true}: KindInt32, {8, true}: KindInt64,
	{1, false}: KindUint8, {2, false}: KindUint16, {4, false}: KindUint32, {8, false}: KindUint64,
}

// atomFromGoType infers an atom for values of Go type t. Strings need the
// widest value and are handled by the caller.
func atomFromGoType(t reflect.Type) (Atom, error) {
	switch t.Kind() {
	case reflect.Bool:
		return BoolAtom(), nil
	case reflect.Int8:
		return Int8Atom(), nil
	case reflect.Int16:
		return Int16Atom(), nil
	case reflect.Int32:
		return Int32Atom(), nil
	case reflect.Int64, reflect.Int:
		return Int64Atom(), nil
	case reflect.Uint8:
		return Uint8Atom(), nil
	case reflect.Uint16:
		return Uint16Atom(), nil
	case reflect.Uint32:
		return Uint32Atom(), nil
	case reflect.Uint64, reflect.Uint:
		return Uint64Atom(), nil
	case reflect.Float32:
		return Float32Atom(), nil
	case reflect.Float64:
		return Float64Atom(), nil
	case reflect.String:
		return StringAtom(1), nil
	}
	return Atom{}, fmt.Errorf("%w: no atom for Go type %s", ErrType, t)
}

// accepts reports whether a Go value of kind k may be stored in atom a.
func (a Atom) accepts(k reflect.Kind) bool {
	switch a.Kind {
	case KindBool:
		return k == reflect.Bool
	case KindString:
		return k == reflect.String
	case KindVLString, KindObject:
		return false
	}
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		return a.Kind == KindFloat32 || a.Kind == KindFloat64
	}
	return false
}

var (
	objectEnc cbor.EncMode
	objectDec cbor.DecMode
)

func init() {
	var err error
	if objectEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if objectDec, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

func marshalObject(v any) ([]byte, error) {
	b, err := objectEnc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrType, err)
	}
	return b, nil
}

func unmarshalObject(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := objectDec.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decoding object row: %w", err)
	}
	return v, nil
}
