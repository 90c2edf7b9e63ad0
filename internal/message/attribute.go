package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
)

// Attribute is the attribute message (0x000C).
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func parseAttribute(c *cursor) (*Attribute, error) {
	version := c.u8()
	if version < 1 || version > 3 {
		return nil, fmt.Errorf("unsupported attribute version %d", version)
	}
	c.skip(1) // reserved or flags
	nameSize := int(c.u16())
	typeSize := int(c.u16())
	spaceSize := int(c.u16())
	if version == 3 {
		c.skip(1) // name charset
	}

	pad := func(n int) int {
		if version == 1 {
			return (n + 7) &^ 7
		}
		return n
	}

	m := &Attribute{Name: c.cstring(pad(nameSize))}

	dc := &cursor{b: c.take(pad(typeSize)), cfg: c.cfg}
	dt, err := parseDatatype(dc)
	if err == nil {
		err = dc.err
	}
	if err != nil {
		return nil, fmt.Errorf("attribute %q datatype: %w", m.Name, err)
	}
	m.Datatype = dt

	sc := &cursor{b: c.take(pad(spaceSize)), cfg: c.cfg}
	ds, err := parseDataspace(sc)
	if err == nil {
		err = sc.err
	}
	if err != nil {
		return nil, fmt.Errorf("attribute %q dataspace: %w", m.Name, err)
	}
	m.Dataspace = ds

	m.Data = c.rest()
	return m, c.err
}

// Encode writes a version 3 attribute with a UTF-8 name.
func (m *Attribute) Encode(w *binpkg.Writer) error {
	cfg := w.Config()
	dt, err := Bytes(m.Datatype, cfg)
	if err != nil {
		return err
	}
	ds, err := Bytes(m.Dataspace, cfg)
	if err != nil {
		return err
	}

	if err := w.WriteBytes([]byte{3, 0}); err != nil {
		return err
	}
	for _, n := range []int{len(m.Name) + 1, len(dt), len(ds)} {
		if err := w.WriteUint16(uint16(n)); err != nil {
			return err
		}
	}
	if err := w.WriteUint8(uint8(CharsetUTF8)); err != nil {
		return err
	}
	if err := w.WriteBytes(append([]byte(m.Name), 0)); err != nil {
		return err
	}
	if err := w.WriteBytes(dt); err != nil {
		return err
	}
	if err := w.WriteBytes(ds); err != nil {
		return err
	}
	return w.WriteBytes(m.Data)
}

// AttributeInfo is the attribute info message (0x0015).
type AttributeInfo struct {
	FractalHeapAddress uint64
}

func (m *AttributeInfo) Type() Type { return TypeAttributeInfo }

// Dense reports whether attributes live in a fractal heap.
func (m *AttributeInfo) Dense(offsetSize int) bool {
	return m.FractalHeapAddress != binpkg.Undefined(offsetSize)
}

func parseAttributeInfo(c *cursor) (*AttributeInfo, error) {
	c.skip(1) // version
	if flags := c.u8(); flags&0x01 != 0 {
		c.skip(2)
	}
	return &AttributeInfo{FractalHeapAddress: c.offset()}, nil
}
