package message

import (
	"encoding/binary"
	"fmt"
	"strings"

	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
)

// Class is the HDF5 datatype class.
type Class uint8

const (
	ClassFixedPoint Class = 0
	ClassFloatPoint Class = 1
	ClassTime       Class = 2
	ClassString     Class = 3
	ClassBitfield   Class = 4
	ClassOpaque     Class = 5
	ClassCompound   Class = 6
	ClassReference  Class = 7
	ClassEnum       Class = 8
	ClassVarLen     Class = 9
	ClassArray      Class = 10
)

// ByteOrder of numeric datatypes.
type ByteOrder uint8

const (
	OrderLE   ByteOrder = 0
	OrderBE   ByteOrder = 1
	OrderNone ByteOrder = 3
)

// StringPadding of fixed-length strings.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet of string types.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype is the datatype message (0x0003).
type Datatype struct {
	Class   Class
	Version uint8
	Size    uint32

	Order   ByteOrder
	Signed  bool
	Padding StringPadding
	Charset CharacterSet

	// VarLenString distinguishes vlen strings from vlen sequences.
	VarLenString bool

	// Base is the element type of vlen and array types.
	Base *Datatype
	// Dims are the array dimensions.
	Dims []uint32

	// props holds the class properties of classes this package does not model.
	props []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

// Integer returns a little-endian fixed-point type.
func Integer(size int, signed bool) *Datatype {
	return &Datatype{Class: ClassFixedPoint, Version: 1, Size: uint32(size), Signed: signed}
}

// Float returns a little-endian IEEE float of 4 or 8 bytes.
func Float(size int) *Datatype {
	return &Datatype{Class: ClassFloatPoint, Version: 1, Size: uint32(size)}
}

// Bitfield returns a little-endian bitfield type.
func Bitfield(size int) *Datatype {
	return &Datatype{Class: ClassBitfield, Version: 1, Size: uint32(size)}
}

// FixedString returns a NUL-padded fixed-length string type.
func FixedString(size int, cs CharacterSet) *Datatype {
	return &Datatype{Class: ClassString, Version: 1, Size: uint32(size), Padding: PadNullPad, Charset: cs, Order: OrderNone}
}

// VarLenString returns a UTF-8 variable-length string type.
func VarLenString() *Datatype {
	return &Datatype{
		Class: ClassVarLen, Version: 1, Size: 16,
		VarLenString: true, Charset: CharsetUTF8, Padding: PadNullTerm,
		Base: Integer(1, false),
	}
}

// Sequence returns a variable-length sequence of base.
func Sequence(base *Datatype) *Datatype {
	return &Datatype{Class: ClassVarLen, Version: 1, Size: 16, Base: base}
}

// Array returns a fixed-size array of base with the given dimensions.
func Array(base *Datatype, dims ...uint32) *Datatype {
	n := uint32(1)
	for _, d := range dims {
		n *= d
	}
	return &Datatype{Class: ClassArray, Version: 3, Size: n * base.Size, Base: base, Dims: dims}
}

// Endian returns the byte order as an encoding/binary order.
func (m *Datatype) Endian() binary.ByteOrder {
	if m.Order == OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Count returns the number of base elements in an array type, or 1.
func (m *Datatype) Count() int {
	n := 1
	for _, d := range m.Dims {
		n *= int(d)
	}
	return n
}

// Scalar strips array wrappers and returns the innermost element type.
func (m *Datatype) Scalar() *Datatype {
	t := m
	for t.Class == ClassArray && t.Base != nil {
		t = t.Base
	}
	return t
}

// String describes the type in a short numpy-like form.
func (m *Datatype) String() string {
	switch m.Class {
	case ClassFixedPoint:
		if m.Signed {
			return fmt.Sprintf("int%d", m.Size*8)
		}
		return fmt.Sprintf("uint%d", m.Size*8)
	case ClassFloatPoint:
		return fmt.Sprintf("float%d", m.Size*8)
	case ClassBitfield:
		if m.Size == 1 {
			return "bool"
		}
		return fmt.Sprintf("bitfield%d", m.Size*8)
	case ClassString:
		return fmt.Sprintf("string[%d]", m.Size)
	case ClassVarLen:
		if m.VarLenString {
			return "vlstring"
		}
		if m.Base != nil {
			return "vlen<" + m.Base.String() + ">"
		}
		return "vlen"
	case ClassArray:
		dims := make([]string, len(m.Dims))
		for i, d := range m.Dims {
			dims[i] = fmt.Sprint(d)
		}
		base := "?"
		if m.Base != nil {
			base = m.Base.String()
		}
		return fmt.Sprintf("%s(%s)", base, strings.Join(dims, ","))
	case ClassOpaque:
		return fmt.Sprintf("opaque[%d]", m.Size)
	case ClassCompound:
		return "compound"
	case ClassEnum:
		return "enum"
	case ClassReference:
		return "reference"
	}
	return fmt.Sprintf("class%d", m.Class)
}

// Equal reports whether two datatypes describe the same layout.
func (m *Datatype) Equal(o *Datatype) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Class != o.Class || m.Size != o.Size || m.Signed != o.Signed ||
		m.VarLenString != o.VarLenString || len(m.Dims) != len(o.Dims) {
		return false
	}
	if m.Class == ClassFixedPoint || m.Class == ClassFloatPoint {
		if m.Order != o.Order {
			return false
		}
	}
	for i := range m.Dims {
		if m.Dims[i] != o.Dims[i] {
			return false
		}
	}
	if m.Class == ClassVarLen && !m.VarLenString || m.Class == ClassArray {
		return m.Base.Equal(o.Base)
	}
	return true
}

func parseDatatype(c *cursor) (*Datatype, error) {
	cv := c.u8()
	bits := c.num(3)
	m := &Datatype{
		Class:   Class(cv & 0x0f),
		Version: cv >> 4,
		Size:    c.u32(),
	}
	if c.err != nil {
		return nil, c.err
	}

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		m.Order = ByteOrder(bits & 0x01)
		m.Signed = bits&0x08 != 0
		c.skip(4) // bit offset, precision

	case ClassFloatPoint:
		m.Order = ByteOrder(bits&0x01 | (bits>>5)&0x02)
		m.Signed = true
		c.skip(12)

	case ClassTime:
		m.Order = ByteOrder(bits & 0x01)
		c.skip(2)

	case ClassString:
		m.Padding = StringPadding(bits & 0x0f)
		m.Charset = CharacterSet((bits >> 4) & 0x0f)
		m.Order = OrderNone

	case ClassOpaque:
		n := int(bits & 0xff)
		m.props = c.take(n)

	case ClassReference:

	case ClassVarLen:
		m.VarLenString = bits&0x0f == 1
		m.Padding = StringPadding((bits >> 4) & 0x0f)
		m.Charset = CharacterSet((bits >> 8) & 0x0f)
		base, err := parseDatatype(c)
		if err != nil {
			return nil, fmt.Errorf("vlen base: %w", err)
		}
		m.Base = base

	case ClassArray:
		rank := int(c.u8())
		if m.Version < 3 {
			c.skip(3)
		}
		m.Dims = make([]uint32, rank)
		for i := range m.Dims {
			m.Dims[i] = c.u32()
		}
		if m.Version < 3 {
			c.skip(4 * rank) // permutation indices
		}
		base, err := parseDatatype(c)
		if err != nil {
			return nil, fmt.Errorf("array base: %w", err)
		}
		m.Base = base

	default:
		// Compound and enum properties are not modelled; they run to the
		// end of the message when they appear at top level.
		m.props = c.rest()
	}
	return m, nil
}

// Encode writes the datatype. Only the classes produced by this package's
// constructors are supported.
func (m *Datatype) Encode(w *binpkg.Writer) error {
	var bits uint32
	version := m.Version
	if version == 0 {
		version = 1
	}
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		bits = uint32(m.Order & 0x01)
		if m.Signed {
			bits |= 0x08
		}
	case ClassFloatPoint:
		// mantissa normalization: implied leading one; sign bit location
		bits = uint32(m.Order&0x01) | 0x20 | (m.Size*8-1)<<8
	case ClassString:
		bits = uint32(m.Padding) | uint32(m.Charset)<<4
	case ClassVarLen:
		if m.VarLenString {
			bits = 1 | uint32(m.Padding)<<4 | uint32(m.Charset)<<8
		}
	case ClassArray:
		version = 3
	default:
		return fmt.Errorf("cannot encode datatype class %d", m.Class)
	}

	if err := w.WriteUint8(uint8(m.Class) | version<<4); err != nil {
		return err
	}
	if err := w.WriteUintN(uint64(bits), 3); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Size); err != nil {
		return err
	}

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		if err := w.WriteUint16(0); err != nil {
			return err
		}
		return w.WriteUint16(uint16(m.Size * 8))
	case ClassFloatPoint:
		return writeFloatProps(w, m.Size)
	case ClassVarLen:
		if m.Base == nil {
			return fmt.Errorf("vlen datatype without base type")
		}
		return m.Base.Encode(w)
	case ClassArray:
		if err := w.WriteUint8(uint8(len(m.Dims))); err != nil {
			return err
		}
		for _, d := range m.Dims {
			if err := w.WriteUint32(d); err != nil {
				return err
			}
		}
		return m.Base.Encode(w)
	}
	return nil
}

func writeFloatProps(w *binpkg.Writer, size uint32) error {
	var expLoc, expSize, mantSize uint8
	var bias uint32
	switch size {
	case 4:
		expLoc, expSize, mantSize, bias = 23, 8, 23, 127
	case 8:
		expLoc, expSize, mantSize, bias = 52, 11, 52, 1023
	default:
		return fmt.Errorf("unsupported float size %d", size)
	}
	props := []byte{0, 0, 0, 0, expLoc, expSize, 0, mantSize}
	binary.LittleEndian.PutUint16(props[2:], uint16(size*8))
	if err := w.WriteBytes(props); err != nil {
		return err
	}
	return w.WriteUint32(bias)
}
