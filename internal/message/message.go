package message

import (
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
)

// Type is an HDF5 header message type.
type Type uint16

const (
	TypeNIL            Type = 0x0000
	TypeDataspace      Type = 0x0001
	TypeLinkInfo       Type = 0x0002
	TypeDatatype       Type = 0x0003
	TypeFillValue      Type = 0x0005
	TypeLink           Type = 0x0006
	TypeDataLayout     Type = 0x0008
	TypeGroupInfo      Type = 0x000A
	TypeFilterPipeline Type = 0x000B
	TypeAttribute      Type = 0x000C
	TypeContinuation   Type = 0x0010
	TypeSymbolTable    Type = 0x0011
	TypeModTime        Type = 0x0012
	TypeAttributeInfo  Type = 0x0015
)

// ErrTruncated is returned when a message body ends early.
var ErrTruncated = errors.New("message truncated")

// Message is implemented by every header message.
type Message interface {
	Type() Type
}

// Encoder is implemented by messages that can be written.
type Encoder interface {
	Message
	Encode(w *binpkg.Writer) error
}

// Bytes encodes m into a fresh byte slice.
func Bytes(m Encoder, cfg binpkg.Config) ([]byte, error) {
	var buf binpkg.Buffer
	if err := m.Encode(binpkg.NewWriter(&buf, cfg)); err != nil {
		return nil, fmt.Errorf("encoding message %#04x: %w", uint16(m.Type()), err)
	}
	return buf.Bytes(), nil
}

// Parse decodes a message body.
func Parse(typ Type, data []byte, cfg binpkg.Config) (Message, error) {
	c := &cursor{b: data, cfg: cfg}
	var (
		m   Message
		err error
	)
	switch typ {
	case TypeDataspace:
		m, err = parseDataspace(c)
	case TypeLinkInfo:
		m, err = parseLinkInfo(c)
	case TypeDatatype:
		m, err = parseDatatype(c)
	case TypeLink:
		m, err = parseLink(c)
	case TypeDataLayout:
		m, err = parseLayout(c)
	case TypeGroupInfo:
		m = &GroupInfo{}
	case TypeFilterPipeline:
		m, err = parseFilterPipeline(c)
	case TypeAttribute:
		m, err = parseAttribute(c)
	case TypeContinuation:
		m, err = parseContinuation(c)
	case TypeSymbolTable:
		m, err = parseSymbolTable(c)
	case TypeAttributeInfo:
		m, err = parseAttributeInfo(c)
	default:
		return &Unknown{typ: typ, Data: data}, nil
	}
	if err == nil {
		err = c.err
	}
	if err != nil {
		return nil, fmt.Errorf("message %#04x: %w", uint16(typ), err)
	}
	return m, nil
}

// Unknown carries the raw body of a message this package does not model.
type Unknown struct {
	typ  Type
	Data []byte
}

func (m *Unknown) Type() Type { return m.typ }

// Continuation points at a further block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeContinuation }

func (m *Continuation) Encode(w *binpkg.Writer) error {
	if err := w.WriteOffset(m.Offset); err != nil {
		return err
	}
	return w.WriteLength(m.Length)
}

func parseContinuation(c *cursor) (*Continuation, error) {
	return &Continuation{Offset: c.offset(), Length: c.length()}, nil
}

// GroupInfo is the group info message. Only the default (empty) form is used.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Encode(w *binpkg.Writer) error {
	// version 0, no flags
	return w.WriteBytes([]byte{0, 0})
}

// cursor reads fields from a message body. The first short read is sticky:
// later reads return zero values and the error is reported once by Parse.
type cursor struct {
	b   []byte
	pos int
	cfg binpkg.Config
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.b) {
		c.err = fmt.Errorf("%w: need %d bytes at %d of %d", ErrTruncated, n, c.pos, len(c.b))
		return nil
	}
	p := c.b[c.pos : c.pos+n]
	c.pos += n
	return p
}

func (c *cursor) num(n int) uint64 {
	p := c.take(n)
	if p == nil {
		return 0
	}
	return binpkg.DecodeUint(p, n, c.cfg.ByteOrder)
}

func (c *cursor) u8() uint8 { return uint8(c.num(1)) }
func (c *cursor) u16() uint16 { return uint16(c.num(2)) }
func (c *cursor) u32() uint32 { return uint32(c.num(4)) }
func (c *cursor) offset() uint64 { return c.num(c.cfg.OffsetSize) }
func (c *cursor) length() uint64 { return c.num(c.cfg.LengthSize) }
func (c *cursor) skip(n int) { c.take(n) }
func (c *cursor) rest() []byte { return c.take(len(c.b) - c.pos) }
func (c *cursor) remaining() int { return len(c.b) - c.pos }

// cstring reads a NUL-terminated string occupying n bytes.
func (c *cursor) cstring(n int) string {
	p := c.take(n)
	for i, b := range p {
		if b == 0 {
			return string(p[:i])
		}
	}
	return string(p)
}
