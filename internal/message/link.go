package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
)

// LinkKind is the kind of a link message.
type LinkKind uint8

const (
	LinkHard     LinkKind = 0
	LinkSoft     LinkKind = 1
	LinkExternal LinkKind = 64
)

// Link is the link message (0x0006).
type Link struct {
	Kind LinkKind
	Name string
	// Address is the target object header of a hard link.
	Address uint64
	// Target is the path of a soft link or the file and path of an
	// external link, separated by a NUL.
	Target string
}

func (m *Link) Type() Type { return TypeLink }

// HardLink returns a hard link to the object header at addr.
func HardLink(name string, addr uint64) *Link {
	return &Link{Kind: LinkHard, Name: name, Address: addr}
}

// SoftLink returns a link to the absolute path target.
func SoftLink(name, target string) *Link {
	return &Link{Kind: LinkSoft, Name: name, Target: target}
}

func parseLink(c *cursor) (*Link, error) {
	if v := c.u8(); v != 1 {
		return nil, fmt.Errorf("unsupported link version %d", v)
	}
	flags := c.u8()
	m := &Link{}
	if flags&0x08 != 0 {
		m.Kind = LinkKind(c.u8())
	}
	if flags&0x04 != 0 {
		c.skip(8) // creation order
	}
	if flags&0x10 != 0 {
		c.skip(1) // charset
	}
	nameLen := int(c.num(1 << (flags & 0x03)))
	m.Name = string(c.take(nameLen))

	switch m.Kind {
	case LinkHard:
		m.Address = c.offset()
	case LinkSoft:
		n := int(c.u16())
		m.Target = string(c.take(n))
	default:
		n := int(c.u16())
		m.Target = string(c.take(n))
	}
	return m, nil
}

// Encode writes a hard or soft link with a UTF-8 name.
func (m *Link) Encode(w *binpkg.Writer) error {
	if m.Kind != LinkHard && m.Kind != LinkSoft {
		return fmt.Errorf("cannot encode link kind %d", m.Kind)
	}
	var width uint8
	switch n := len(m.Name); {
	case n > 0xffff:
		width = 2
	case n > 0xff:
		width = 1
	}
	head := []byte{1, width | 0x10}
	if m.Kind != LinkHard {
		head[1] |= 0x08
		head = append(head, byte(m.Kind))
	}
	head = append(head, byte(CharsetUTF8))
	if err := w.WriteBytes(head); err != nil {
		return err
	}
	if err := w.WriteUintN(uint64(len(m.Name)), 1<<width); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(m.Name)); err != nil {
		return err
	}
	if m.Kind == LinkSoft {
		if err := w.WriteUint16(uint16(len(m.Target))); err != nil {
			return err
		}
		return w.WriteBytes([]byte(m.Target))
	}
	return w.WriteOffset(m.Address)
}

// LinkInfo is the link info message (0x0002) that marks a new-style group.
// Zero addresses encode as undefined.
type LinkInfo struct {
	FractalHeapAddress uint64
	NameIndexAddress   uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// Dense reports whether links live in a fractal heap instead of link
// messages.
func (m *LinkInfo) Dense(offsetSize int) bool {
	return m.FractalHeapAddress != binpkg.Undefined(offsetSize)
}

func parseLinkInfo(c *cursor) (*LinkInfo, error) {
	if v := c.u8(); v != 0 {
		return nil, fmt.Errorf("unsupported link info version %d", v)
	}
	flags := c.u8()
	if flags&0x01 != 0 {
		c.skip(8) // maximum creation index
	}
	m := &LinkInfo{FractalHeapAddress: c.offset(), NameIndexAddress: c.offset()}
	if flags&0x02 != 0 {
		c.offset() // creation order index
	}
	return m, nil
}

func (m *LinkInfo) Encode(w *binpkg.Writer) error {
	if err := w.WriteBytes([]byte{0, 0}); err != nil {
		return err
	}
	for _, addr := range []uint64{m.FractalHeapAddress, m.NameIndexAddress} {
		if addr == 0 {
			addr = binpkg.Undefined(w.OffsetSize())
		}
		if err := w.WriteOffset(addr); err != nil {
			return err
		}
	}
	return nil
}

// SymbolTable is the symbol table message (0x0011) of an old-style group.
// Member names live in the local heap and entries are indexed by a version
// 1 B-tree.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(c *cursor) (*SymbolTable, error) {
	return &SymbolTable{BTreeAddress: c.offset(), LocalHeapAddress: c.offset()}, nil
}

func (m *SymbolTable) Encode(w *binpkg.Writer) error {
	if err := w.WriteOffset(m.BTreeAddress); err != nil {
		return err
	}
	return w.WriteOffset(m.LocalHeapAddress)
}
