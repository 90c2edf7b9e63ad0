package object

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/message"
)

var (
	signature     = []byte("OHDR")
	contSignature = []byte("OCHK")
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
	ErrSharedMessage      = errors.New("shared header messages are not supported")
)

const (
	flagSizeMask     = 0x03
	flagTrackOrder   = 0x04
	flagPhaseChange  = 0x10
	flagTimes        = 0x20
	maxContinuations = 1024
)

// Header is a parsed object header.
type Header struct {
	Address  uint64
	Version  uint8
	Flags    uint8
	Messages []message.Message

	ModTime uint32
}

// Read parses the version 1 or 2 object header at addr, following
// continuation blocks.
func Read(r *binary.Reader, addr uint64) (*Header, error) {
	hr := r.At(int64(addr))
	prefix, err := hr.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	if !bytes.Equal(prefix[:4], signature) {
		if prefix[0] == 1 {
			return readV1(r, addr)
		}
		return nil, fmt.Errorf("%w: no signature at %d", ErrInvalidHeader, addr)
	}
	if prefix[4] != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, prefix[4])
	}

	h := &Header{Address: addr, Version: 2, Flags: prefix[5]}
	if h.Flags&flagTimes != 0 {
		times, err := hr.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		h.ModTime = r.ByteOrder().Uint32(times[4:])
	}
	if h.Flags&flagPhaseChange != 0 {
		hr.Skip(4)
	}
	size, err := hr.ReadUintN(1 << (h.Flags & flagSizeMask))
	if err != nil {
		return nil, err
	}

	start := hr.Pos()
	block, err := r.At(int64(addr)).ReadBytes(int(start-int64(addr)) + int(size) + 4)
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	if err := verify(block); err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}

	conts, err := h.parseMessages(block[start-int64(addr):len(block)-4], r.Config())
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	err = h.follow(conts, func(c *message.Continuation) ([]*message.Continuation, error) {
		return h.readContinuation(r, c)
	})
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	return h, nil
}

// follow reads continuation blocks breadth first until none remain.
func (h *Header) follow(conts []*message.Continuation, read func(*message.Continuation) ([]*message.Continuation, error)) error {
	for n := 0; len(conts) > 0; n++ {
		if n >= maxContinuations {
			return fmt.Errorf("%w: too many continuation blocks", ErrInvalidHeader)
		}
		c := conts[0]
		conts = conts[1:]
		more, err := read(c)
		if err != nil {
			return err
		}
		conts = append(conts, more...)
	}
	return nil
}

func (h *Header) readContinuation(r *binary.Reader, c *message.Continuation) ([]*message.Continuation, error) {
	block, err := r.At(int64(c.Offset)).ReadBytes(int(c.Length))
	if err != nil {
		return nil, fmt.Errorf("continuation at %d: %w", c.Offset, err)
	}
	if len(block) < 8 || !bytes.Equal(block[:4], contSignature) {
		return nil, fmt.Errorf("%w: bad continuation block at %d", ErrInvalidHeader, c.Offset)
	}
	if err := verify(block); err != nil {
		return nil, fmt.Errorf("continuation at %d: %w", c.Offset, err)
	}
	return h.parseMessages(block[4:len(block)-4], r.Config())
}

// parseMessages appends the messages in body and returns any continuations.
func (h *Header) parseMessages(body []byte, cfg binary.Config) ([]*message.Continuation, error) {
	var conts []*message.Continuation
	hdrSize := 4
	if h.Flags&flagTrackOrder != 0 {
		hdrSize += 2
	}
	for pos := 0; pos+hdrSize <= len(body); {
		typ := message.Type(body[pos])
		n := int(cfg.ByteOrder.Uint16(body[pos+1:]))
		pos += hdrSize
		if pos+n > len(body) {
			return nil, fmt.Errorf("%w: message %#02x overruns block", ErrInvalidHeader, uint16(typ))
		}
		data := body[pos : pos+n]
		pos += n
		if typ == message.TypeNIL {
			continue
		}
		m, err := message.Parse(typ, data, cfg)
		if err != nil {
			return nil, err
		}
		if c, ok := m.(*message.Continuation); ok {
			conts = append(conts, c)
			continue
		}
		h.Messages = append(h.Messages, m)
	}
	return conts, nil
}

func verify(block []byte) error {
	body := block[:len(block)-4]
	stored := uint32(block[len(body)]) | uint32(block[len(body)+1])<<8 |
		uint32(block[len(body)+2])<<16 | uint32(block[len(body)+3])<<24
	if sum := binary.Lookup3Checksum(body); sum != stored {
		return fmt.Errorf("%w: stored %#08x, computed %#08x", ErrChecksumMismatch, stored, sum)
	}
	return nil
}

// Message returns the first message of type typ, or nil.
func (h *Header) Message(typ message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == typ {
			return m
		}
	}
	return nil
}

// Dataspace returns the dataspace message, or nil.
func (h *Header) Dataspace() *message.Dataspace {
	m, _ := h.Message(message.TypeDataspace).(*message.Dataspace)
	return m
}

// Datatype returns the datatype message, or nil.
func (h *Header) Datatype() *message.Datatype {
	m, _ := h.Message(message.TypeDatatype).(*message.Datatype)
	return m
}

// Layout returns the data layout message, or nil.
func (h *Header) Layout() *message.Layout {
	m, _ := h.Message(message.TypeDataLayout).(*message.Layout)
	return m
}

// FilterPipeline returns the filter pipeline message, or nil.
func (h *Header) FilterPipeline() *message.FilterPipeline {
	m, _ := h.Message(message.TypeFilterPipeline).(*message.FilterPipeline)
	return m
}

// LinkInfo returns the link info message, or nil.
func (h *Header) LinkInfo() *message.LinkInfo {
	m, _ := h.Message(message.TypeLinkInfo).(*message.LinkInfo)
	return m
}

// SymbolTable returns the symbol table message of an old-style group, or nil.
func (h *Header) SymbolTable() *message.SymbolTable {
	m, _ := h.Message(message.TypeSymbolTable).(*message.SymbolTable)
	return m
}

// AttributeInfo returns the attribute info message, or nil.
func (h *Header) AttributeInfo() *message.AttributeInfo {
	m, _ := h.Message(message.TypeAttributeInfo).(*message.AttributeInfo)
	return m
}

// Links returns the link messages in header order.
func (h *Header) Links() []*message.Link {
	var out []*message.Link
	for _, m := range h.Messages {
		if l, ok := m.(*message.Link); ok {
			out = append(out, l)
		}
	}
	return out
}

// Attributes returns the attribute messages in header order.
func (h *Header) Attributes() []*message.Attribute {
	var out []*message.Attribute
	for _, m := range h.Messages {
		if a, ok := m.(*message.Attribute); ok {
			out = append(out, a)
		}
	}
	return out
}

// IsGroup reports whether the header describes a group.
func (h *Header) IsGroup() bool {
	return h.Message(message.TypeLinkInfo) != nil || h.Message(message.TypeLink) != nil ||
		h.Message(message.TypeSymbolTable) != nil || h.Message(message.TypeGroupInfo) != nil
}

// IsDataset reports whether the header describes a dataset.
func (h *Header) IsDataset() bool {
	return h.Message(message.TypeDataLayout) != nil
}
